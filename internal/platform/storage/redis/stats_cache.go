// Package redis implements the advisory statistics cache on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/survey-votes/internal/domain"
)

// StatsCache holds one serialized Statistics snapshot under a single key.
// The TTL bounds staleness; mutations invalidate the key eagerly so the
// admin dashboard converges immediately after an edit.
type StatsCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, key string, ttl time.Duration) *StatsCache {
	return &StatsCache{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (c *StatsCache) Get(ctx context.Context) (domain.Statistics, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Statistics{}, false, nil
	}
	if err != nil {
		return domain.Statistics{}, false, fmt.Errorf("stats cache: get: %w", err)
	}

	var stats domain.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return domain.Statistics{}, false, nil
	}
	return stats, true, nil
}

func (c *StatsCache) Set(ctx context.Context, stats domain.Statistics) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("stats cache: serialize: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("stats cache: set: %w", err)
	}
	return nil
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("stats cache: invalidate: %w", err)
	}
	return nil
}

var _ domain.StatsCache = (*StatsCache)(nil)

// NoopStatsCache keeps the service wiring uniform when Redis is disabled.
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context) (domain.Statistics, bool, error) {
	return domain.Statistics{}, false, nil
}

func (NoopStatsCache) Set(context.Context, domain.Statistics) error { return nil }

func (NoopStatsCache) Invalidate(context.Context) error { return nil }

var _ domain.StatsCache = NoopStatsCache{}
