package domain

import (
	"context"
	"time"
)

// VoteRepository owns the votes table and the transactional coupling with the
// vote_options counters. Every mutating method runs as a single database
// transaction: the record write and its counter adjustments commit or roll
// back together.
type VoteRepository interface {
	Submit(ctx context.Context, vote Vote) (Vote, error)
	Update(ctx context.Context, id VoteID, username string, options OptionList) error
	Delete(ctx context.Context, id VoteID) error
	DeleteByUsername(ctx context.Context, username string) error
	ReplaceAll(ctx context.Context, votes []Vote) (int, error)
	FindByUsername(ctx context.Context, username string) (Vote, error)
	List(ctx context.Context, filter string) ([]Vote, error)
	Count(ctx context.Context) (int64, error)
}

type OptionRepository interface {
	ListActive(ctx context.Context) ([]Option, error)
	ListAll(ctx context.Context) ([]Option, error)
}

type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
}

// StatsCache fronts the statistics read path. It is advisory: a miss or a
// cache error never fails the request, and mutations invalidate eagerly.
type StatsCache interface {
	Get(ctx context.Context) (Statistics, bool, error)
	Set(ctx context.Context, stats Statistics) error
	Invalidate(ctx context.Context) error
}

// RateLimiter throttles public submissions per origin.
type RateLimiter interface {
	Check(ctx context.Context, origin, agent string) error
}

type Clock interface {
	Now() time.Time
}

// SurveyService is the application surface consumed by the HTTP layer.
type SurveyService interface {
	Submit(ctx context.Context, username string, options OptionList, origin, agent string) (Vote, error)
	Update(ctx context.Context, id VoteID, username string, options OptionList) error
	Delete(ctx context.Context, id VoteID) error
	ClearUser(ctx context.Context, username string) error
	ClearAll(ctx context.Context) error
	Restore(ctx context.Context, votes []Vote) (int, error)
	HasVoted(ctx context.Context, username string) (Vote, bool, error)
	ListVotes(ctx context.Context, filter string) ([]Vote, error)
	ActiveOptions(ctx context.Context) ([]Option, error)
	AllOptions(ctx context.Context) ([]Option, error)
	Statistics(ctx context.Context) (Statistics, error)
	Backup(ctx context.Context) ([]Vote, string, error)
}
