package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelojr/survey-votes/internal/domain"
)

// ConfigRepository reads the system_config key/value table.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

type configModel struct {
	Key   string `gorm:"column:config_key;primaryKey"`
	Value string `gorm:"column:config_value"`
}

func (configModel) TableName() string {
	return "system_config"
}

func (r *ConfigRepository) Get(ctx context.Context, key string) (string, error) {
	var model configModel
	if err := r.db.WithContext(ctx).First(&model, "config_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("gorm config: get %q: %w", key, err)
	}
	return model.Value, nil
}

var _ domain.ConfigRepository = (*ConfigRepository)(nil)
