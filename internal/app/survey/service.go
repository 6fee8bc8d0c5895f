// Package survey implements the voting business rules: single submission per
// username, admin edits, and the aggregate projections.
package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcelojr/survey-votes/internal/domain"
	"github.com/marcelojr/survey-votes/internal/platform/metrics"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Service wires repositories, the statistics cache and the rate limiter
// behind the SurveyService surface.
type Service struct {
	votes   domain.VoteRepository
	options domain.OptionRepository
	config  domain.ConfigRepository
	cache   domain.StatsCache
	limiter domain.RateLimiter
	clock   domain.Clock
}

func NewService(
	votes domain.VoteRepository,
	options domain.OptionRepository,
	config domain.ConfigRepository,
	cache domain.StatsCache,
	limiter domain.RateLimiter,
	clock domain.Clock,
) *Service {
	return &Service{
		votes:   votes,
		options: options,
		config:  config,
		cache:   cache,
		limiter: limiter,
		clock:   clock,
	}
}

// Submit validates and persists a new vote. The repository transaction plus
// the username unique index guarantee that of any concurrent submits for the
// same username exactly one wins.
func (s *Service) Submit(ctx context.Context, username string, options domain.OptionList, origin, agent string) (domain.Vote, error) {
	username, options, err := normalizeInput(username, options)
	if err != nil {
		return domain.Vote{}, err
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, origin, agent); err != nil {
			return domain.Vote{}, err
		}
	}

	start := time.Now()
	vote, err := s.votes.Submit(ctx, domain.Vote{
		Username:        username,
		SelectedOptions: options,
		SubmitTime:      s.clock.Now(),
		IPAddress:       origin,
		UserAgent:       agent,
	})
	if err != nil {
		return domain.Vote{}, err
	}
	metrics.ObserveMutation("submit", time.Since(start).Seconds())

	s.invalidateStats(ctx)
	return vote, nil
}

// Update rewrites an existing record's username and option set. Submit time
// stays frozen; the counter unwind/apply happens inside the repository
// transaction.
func (s *Service) Update(ctx context.Context, id domain.VoteID, username string, options domain.OptionList) error {
	username, options, err := normalizeInput(username, options)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := s.votes.Update(ctx, id, username, options); err != nil {
		return err
	}
	metrics.ObserveMutation("update", time.Since(start).Seconds())

	s.invalidateStats(ctx)
	return nil
}

func (s *Service) Delete(ctx context.Context, id domain.VoteID) error {
	start := time.Now()
	if err := s.votes.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ObserveMutation("delete", time.Since(start).Seconds())

	s.invalidateStats(ctx)
	return nil
}

// ClearUser removes the caller's own vote, addressed by username.
func (s *Service) ClearUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username required", ErrInvalidInput)
	}

	if err := s.votes.DeleteByUsername(ctx, username); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	return nil
}

// Restore bulk-replaces the vote store from a backup and recounts every
// option. Input rows are taken verbatim with no per-username validation; the
// store's unique index has the final say, failing the whole transaction for
// a duplicate-carrying backup.
func (s *Service) Restore(ctx context.Context, votes []domain.Vote) (int, error) {
	if votes == nil {
		return 0, fmt.Errorf("%w: votes payload required", ErrInvalidInput)
	}

	start := time.Now()
	count, err := s.votes.ReplaceAll(ctx, votes)
	if err != nil {
		return 0, err
	}
	metrics.ObserveMutation("restore", time.Since(start).Seconds())
	metrics.AddRestoredRecords(count)

	s.invalidateStats(ctx)
	return count, nil
}

// ClearAll wipes every vote and resets all option counters, the debug reset
// used when a test round is discarded.
func (s *Service) ClearAll(ctx context.Context) error {
	start := time.Now()
	if _, err := s.votes.ReplaceAll(ctx, nil); err != nil {
		return err
	}
	metrics.ObserveMutation("clear_all", time.Since(start).Seconds())

	s.invalidateStats(ctx)
	return nil
}

func (s *Service) HasVoted(ctx context.Context, username string) (domain.Vote, bool, error) {
	vote, err := s.votes.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Vote{}, false, nil
	}
	if err != nil {
		return domain.Vote{}, false, err
	}
	return vote, true, nil
}

func (s *Service) ListVotes(ctx context.Context, filter string) ([]domain.Vote, error) {
	return s.votes.List(ctx, filter)
}

func (s *Service) ActiveOptions(ctx context.Context) ([]domain.Option, error) {
	return s.options.ListActive(ctx)
}

func (s *Service) AllOptions(ctx context.Context) ([]domain.Option, error) {
	return s.options.ListAll(ctx)
}

// Statistics serves the denormalized tallies. optionCounts comes straight off
// vote_options; totalVotes is their sum (option selections, not voters) and
// voterCount is the vote row count. The cache is advisory: errors fall
// through to the store.
func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx); err == nil && ok {
			return cached, nil
		}
	}

	options, err := s.options.ListAll(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}

	voterCount, err := s.votes.Count(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}

	stats := domain.Statistics{
		VoterCount:   voterCount,
		OptionCounts: make(map[string]int64, len(options)),
	}
	for _, option := range options {
		stats.OptionCounts[option.Text] = option.VoteCount
		stats.TotalVotes += option.VoteCount
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, stats)
	}
	return stats, nil
}

// Backup returns every vote row newest-first plus the envelope version from
// system_config.
func (s *Service) Backup(ctx context.Context) ([]domain.Vote, string, error) {
	votes, err := s.votes.List(ctx, "")
	if err != nil {
		return nil, "", err
	}

	version, err := s.config.Get(ctx, domain.ConfigKeyBackupVersion)
	if errors.Is(err, domain.ErrNotFound) {
		version = "1.0"
	} else if err != nil {
		return nil, "", err
	}
	return votes, version, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		// Best effort: a failed invalidation only extends staleness by the TTL.
		_ = s.cache.Invalidate(ctx)
	}
}

func normalizeInput(username string, options domain.OptionList) (string, domain.OptionList, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", nil, fmt.Errorf("%w: username required", ErrInvalidInput)
	}

	cleaned := make(domain.OptionList, 0, len(options))
	for _, option := range options {
		if option = strings.TrimSpace(option); option != "" {
			cleaned = append(cleaned, option)
		}
	}
	if len(cleaned) == 0 {
		return "", nil, fmt.Errorf("%w: at least one option required", ErrInvalidInput)
	}
	return username, cleaned, nil
}

var _ domain.SurveyService = (*Service)(nil)
