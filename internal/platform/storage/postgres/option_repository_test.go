package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/marcelojr/survey-votes/internal/domain"
)

func TestListActiveOrdersAndFilters(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db,
		domain.Option{Text: "tea", Order: 2, IsActive: true},
		domain.Option{Text: "coffee", Order: 1, IsActive: true},
		domain.Option{Text: "retired", Order: 3, IsActive: false},
	)
	repo := NewOptionRepository(db)

	options, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("active options = %d, want 2", len(options))
	}
	if options[0].Text != "coffee" || options[1].Text != "tea" {
		t.Errorf("order = %s,%s, want coffee,tea", options[0].Text, options[1].Text)
	}
}

func TestListAllIncludesRetired(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db,
		domain.Option{Text: "coffee", Order: 1, IsActive: true},
		domain.Option{Text: "retired", Order: 2, IsActive: false, VoteCount: 5},
	)
	repo := NewOptionRepository(db)

	options, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("options = %d, want 2", len(options))
	}
	if options[1].Text != "retired" || options[1].VoteCount != 5 {
		t.Errorf("retired row = %+v, want vote count 5", options[1])
	}
}

func TestInactiveOptionStaysInactiveThroughCreate(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "retired", Order: 1, IsActive: false})
	repo := NewOptionRepository(db)

	// A default tag on is_active would make GORM drop the false value on
	// insert and store true instead.
	var stored domain.Option
	if err := db.First(&stored, "option_text = ?", "retired").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.IsActive {
		t.Fatal("inactive option persisted as active")
	}

	active, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active options = %d, want 0", len(active))
	}
}

func TestConfigGet(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&domain.ConfigEntry{Key: domain.ConfigKeyBackupVersion, Value: "2.3"}).Error; err != nil {
		t.Fatalf("seed config: %v", err)
	}
	repo := NewConfigRepository(db)

	value, err := repo.Get(context.Background(), domain.ConfigKeyBackupVersion)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "2.3" {
		t.Errorf("value = %q, want 2.3", value)
	}

	if _, err := repo.Get(context.Background(), "missing_key"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing key err = %v, want ErrNotFound", err)
	}
}
