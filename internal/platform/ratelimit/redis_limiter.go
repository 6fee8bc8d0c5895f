// Package ratelimit throttles public vote submissions (Redis fixed window
// plus a permissive noop mode).
package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/survey-votes/internal/domain"
)

var ErrLimitExceeded = fmt.Errorf("submission limit reached")

// RedisLimiter counts submissions per origin/agent pair in fixed windows.
type RedisLimiter struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: prefix,
	}
}

func (r *RedisLimiter) Check(ctx context.Context, origin, agent string) error {
	if r.client == nil || r.limit <= 0 || r.window <= 0 {
		// Misconfiguration degrades to permissive mode rather than blocking votes.
		return nil
	}

	key := r.buildKey(origin, agent)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ratelimit: incr: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return fmt.Errorf("ratelimit: expire: %w", err)
		}
	}

	if int(count) > r.limit {
		return ErrLimitExceeded
	}

	return nil
}

func (r *RedisLimiter) buildKey(origin, agent string) string {
	// SHA-1 keeps raw IP/UA strings out of Redis keys.
	hash := sha1.Sum([]byte(origin + "|" + agent))
	return fmt.Sprintf("%s:%s", r.keyPrefix, hex.EncodeToString(hash[:]))
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)
