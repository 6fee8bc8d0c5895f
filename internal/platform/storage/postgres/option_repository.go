package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marcelojr/survey-votes/internal/domain"
)

// OptionRepository reads the vote_options catalog. Counter writes live in the
// vote repository transactions; this side only serves the read projections.
type OptionRepository struct {
	db *gorm.DB
}

func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

type optionModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	Text       string    `gorm:"column:option_text;uniqueIndex:idx_vote_options_text"`
	VoteCount  int64     `gorm:"column:vote_count"`
	Order      int       `gorm:"column:option_order"`
	IsActive   bool      `gorm:"column:is_active"`
	CreateTime time.Time `gorm:"column:create_time"`
}

func (optionModel) TableName() string {
	return "vote_options"
}

func (m optionModel) toDomain() domain.Option {
	return domain.Option{
		ID:         m.ID,
		Text:       m.Text,
		VoteCount:  m.VoteCount,
		Order:      m.Order,
		IsActive:   m.IsActive,
		CreateTime: m.CreateTime,
	}
}

func (r *OptionRepository) ListActive(ctx context.Context) ([]domain.Option, error) {
	var models []optionModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("option_order ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm options: list active: %w", err)
	}
	return toDomainOptions(models), nil
}

func (r *OptionRepository) ListAll(ctx context.Context) ([]domain.Option, error) {
	var models []optionModel
	if err := r.db.WithContext(ctx).
		Order("option_order ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm options: list all: %w", err)
	}
	return toDomainOptions(models), nil
}

func toDomainOptions(models []optionModel) []domain.Option {
	options := make([]domain.Option, len(models))
	for i, model := range models {
		options[i] = model.toDomain()
	}
	return options
}

var _ domain.OptionRepository = (*OptionRepository)(nil)
