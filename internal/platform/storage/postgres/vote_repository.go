package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marcelojr/survey-votes/internal/domain"
)

// VoteRepository owns the votes table together with the vote_options
// counters. Each mutation runs in one transaction so a record write and its
// counter adjustments are never observable apart: the record's previous
// contribution is unwound before the new one is applied.
type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

type voteModel struct {
	ID              int64             `gorm:"column:id;primaryKey;autoIncrement"`
	Username        string            `gorm:"column:username;uniqueIndex:idx_votes_username"`
	SelectedOptions domain.OptionList `gorm:"column:selected_options;type:text"`
	SubmitTime      time.Time         `gorm:"column:submit_time"`
	IPAddress       string            `gorm:"column:ip_address"`
	UserAgent       string            `gorm:"column:user_agent"`
	IsDeleted       bool              `gorm:"column:is_deleted"`
	CreateTime      time.Time         `gorm:"column:create_time"`
	UpdateTime      time.Time         `gorm:"column:update_time"`
}

func (voteModel) TableName() string {
	return "votes"
}

func (m voteModel) toDomain() domain.Vote {
	return domain.Vote{
		ID:              domain.VoteID(m.ID),
		Username:        m.Username,
		SelectedOptions: m.SelectedOptions,
		SubmitTime:      m.SubmitTime,
		IPAddress:       m.IPAddress,
		UserAgent:       m.UserAgent,
		IsDeleted:       m.IsDeleted,
		CreateTime:      m.CreateTime,
		UpdateTime:      m.UpdateTime,
	}
}

func fromDomainVote(v domain.Vote) voteModel {
	return voteModel{
		ID:              int64(v.ID),
		Username:        v.Username,
		SelectedOptions: v.SelectedOptions,
		SubmitTime:      v.SubmitTime,
		IPAddress:       v.IPAddress,
		UserAgent:       v.UserAgent,
		IsDeleted:       v.IsDeleted,
		CreateTime:      v.CreateTime,
		UpdateTime:      v.UpdateTime,
	}
}

// Submit inserts the vote and bumps each referenced option counter. The
// in-transaction existence check gives the friendly conflict answer; the
// unique index on username is the backstop when two submits race past it.
func (r *VoteRepository) Submit(ctx context.Context, vote domain.Vote) (domain.Vote, error) {
	model := fromDomainVote(vote)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing voteModel
		err := tx.Select("id").First(&existing, "username = ?", model.Username).Error
		if err == nil {
			return domain.ErrDuplicateUsername
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("gorm votes: check username: %w", err)
		}

		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrDuplicateUsername
			}
			return fmt.Errorf("gorm votes: insert: %w", err)
		}

		// Unknown option texts are a silent no-op: free-form labels from
		// imported data must not fail the whole submission.
		for _, text := range model.SelectedOptions {
			if err := incrementOptionCount(tx, text, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Vote{}, err
	}
	return model.toDomain(), nil
}

// Update rewrites username and option set, leaving submit_time frozen. Old
// counter contributions are decremented (floored at zero) and the new set is
// credited only to options still active, so a retired option never regains
// tally through an edit.
func (r *VoteRepository) Update(ctx context.Context, id domain.VoteID, username string, options domain.OptionList) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing voteModel
		if err := tx.First(&existing, "id = ?", int64(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("gorm votes: load for update: %w", err)
		}

		err := tx.Model(&voteModel{}).
			Where("id = ?", int64(id)).
			Updates(map[string]any{
				"username":         username,
				"selected_options": options,
				"update_time":      time.Now().UTC(),
			}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Renaming onto a username that already voted.
				return domain.ErrDuplicateUsername
			}
			return fmt.Errorf("gorm votes: update: %w", err)
		}

		for _, text := range existing.SelectedOptions {
			if err := decrementOptionCount(tx, text); err != nil {
				return err
			}
		}
		for _, text := range options {
			if err := incrementOptionCount(tx, text, true); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *VoteRepository) Delete(ctx context.Context, id domain.VoteID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing voteModel
		if err := tx.First(&existing, "id = ?", int64(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("gorm votes: load for delete: %w", err)
		}
		return deleteAndUnwind(tx, existing)
	})
}

// DeleteByUsername backs the self-service "clear my data" path; it shares the
// delete transaction shape keyed by username instead of id.
func (r *VoteRepository) DeleteByUsername(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing voteModel
		if err := tx.First(&existing, "username = ?", username).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("gorm votes: load for clear: %w", err)
		}
		return deleteAndUnwind(tx, existing)
	})
}

func deleteAndUnwind(tx *gorm.DB, existing voteModel) error {
	if err := tx.Delete(&voteModel{}, "id = ?", existing.ID).Error; err != nil {
		return fmt.Errorf("gorm votes: delete: %w", err)
	}
	for _, text := range existing.SelectedOptions {
		if err := decrementOptionCount(tx, text); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceAll swaps the entire vote table for the supplied rows and recounts
// every option from scratch. Supplied ids and timestamps are preserved; this
// is the disaster-recovery path and deliberately skips the application-level
// uniqueness check. The unique index on username still applies, so a backup
// carrying duplicate usernames fails the transaction and the prior state is
// retained.
func (r *VoteRepository) ReplaceAll(ctx context.Context, votes []domain.Vote) (int, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM votes").Error; err != nil {
			return fmt.Errorf("gorm votes: truncate: %w", err)
		}

		now := time.Now().UTC()
		for _, vote := range votes {
			model := fromDomainVote(vote)
			if model.SubmitTime.IsZero() {
				model.SubmitTime = now
			}
			if model.CreateTime.IsZero() {
				model.CreateTime = model.SubmitTime
			}
			if model.UpdateTime.IsZero() {
				model.UpdateTime = model.SubmitTime
			}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("gorm votes: restore row %d: %w", model.ID, err)
			}
		}

		if err := tx.Exec("UPDATE vote_options SET vote_count = 0").Error; err != nil {
			return fmt.Errorf("gorm votes: reset counts: %w", err)
		}
		for _, vote := range votes {
			for _, text := range vote.SelectedOptions {
				if err := incrementOptionCount(tx, text, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(votes), nil
}

func (r *VoteRepository) FindByUsername(ctx context.Context, username string) (domain.Vote, error) {
	var model voteModel
	if err := r.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Vote{}, domain.ErrNotFound
		}
		return domain.Vote{}, fmt.Errorf("gorm votes: find username: %w", err)
	}
	return model.toDomain(), nil
}

// List returns all votes newest-first. A non-empty filter matches as a
// case-insensitive substring over username and the stored option list.
func (r *VoteRepository) List(ctx context.Context, filter string) ([]domain.Vote, error) {
	query := r.db.WithContext(ctx).Model(&voteModel{}).Order("submit_time DESC")

	if filter = strings.TrimSpace(filter); filter != "" {
		pattern := "%" + strings.ToLower(filter) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(selected_options) LIKE ?", pattern, pattern)
	}

	var models []voteModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm votes: list: %w", err)
	}

	votes := make([]domain.Vote, len(models))
	for i, model := range models {
		votes[i] = model.toDomain()
	}
	return votes, nil
}

func (r *VoteRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&voteModel{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("gorm votes: count: %w", err)
	}
	return total, nil
}

// incrementOptionCount credits one selection to the option with the given
// text. With activeOnly set, retired options are skipped (edits and restores
// must not resurrect their tallies). Unknown texts affect zero rows.
func incrementOptionCount(tx *gorm.DB, text string, activeOnly bool) error {
	query := tx.Model(&optionModel{}).Where("option_text = ?", text)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.UpdateColumn("vote_count", gorm.Expr("vote_count + 1")).Error; err != nil {
		return fmt.Errorf("gorm options: increment %q: %w", text, err)
	}
	return nil
}

// decrementOptionCount removes one selection, floored at zero. The WHERE
// guard keeps the counter non-negative without dialect-specific GREATEST.
func decrementOptionCount(tx *gorm.DB, text string) error {
	err := tx.Model(&optionModel{}).
		Where("option_text = ? AND vote_count > 0", text).
		UpdateColumn("vote_count", gorm.Expr("vote_count - 1")).Error
	if err != nil {
		return fmt.Errorf("gorm options: decrement %q: %w", text, err)
	}
	return nil
}

var _ domain.VoteRepository = (*VoteRepository)(nil)
