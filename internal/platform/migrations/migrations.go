// Package migrations holds the gormigrate versions applied at startup.
package migrations

import (
	"fmt"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelojr/survey-votes/internal/domain"
)

// Run applies the versioned schema and seeds the option catalog. Seeding is
// idempotent: option texts already present keep their rows and counts.
func Run(db *gorm.DB, seedOptions []string) error {
	if db == nil {
		return fmt.Errorf("migrations: nil db")
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202508200001_init_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.Vote{}, &domain.Option{}, &domain.ConfigEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("votes", "vote_options", "system_config")
			},
		},
		{
			ID: "202508200002_seed_config",
			Migrate: func(tx *gorm.DB) error {
				entry := domain.ConfigEntry{Key: domain.ConfigKeyBackupVersion, Value: "1.0"}
				return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Delete(&domain.ConfigEntry{}, "config_key = ?", domain.ConfigKeyBackupVersion).Error
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: apply: %w", err)
	}

	return seedVoteOptions(db, seedOptions)
}

func seedVoteOptions(db *gorm.DB, texts []string) error {
	for i, text := range texts {
		option := domain.Option{Text: text, Order: i + 1, IsActive: true}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "option_text"}},
			DoNothing: true,
		}).Create(&option).Error; err != nil {
			return fmt.Errorf("migrations: seed option %q: %w", text, err)
		}
	}
	return nil
}
