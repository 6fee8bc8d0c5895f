package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marcelojr/survey-votes/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Vote{}, &domain.Option{}, &domain.ConfigEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedOptions(t *testing.T, db *gorm.DB, options ...domain.Option) {
	t.Helper()
	for i := range options {
		if err := db.Create(&options[i]).Error; err != nil {
			t.Fatalf("seed option %q: %v", options[i].Text, err)
		}
	}
}

func optionCount(t *testing.T, db *gorm.DB, text string) int64 {
	t.Helper()
	var option domain.Option
	if err := db.First(&option, "option_text = ?", text).Error; err != nil {
		t.Fatalf("load option %q: %v", text, err)
	}
	return option.VoteCount
}

func submitVote(t *testing.T, repo *VoteRepository, username string, options ...string) domain.Vote {
	t.Helper()
	vote, err := repo.Submit(context.Background(), domain.Vote{
		Username:        username,
		SelectedOptions: domain.OptionList(options),
		SubmitTime:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("submit %q: %v", username, err)
	}
	return vote
}

func TestSubmitIncrementsCounters(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db,
		domain.Option{Text: "coffee", Order: 1, IsActive: true},
		domain.Option{Text: "tea", Order: 2, IsActive: true},
	)
	repo := NewVoteRepository(db)

	vote := submitVote(t, repo, "alice", "coffee", "tea")
	if vote.ID == 0 {
		t.Fatal("expected assigned id")
	}

	if got := optionCount(t, db, "coffee"); got != 1 {
		t.Errorf("coffee count = %d, want 1", got)
	}
	if got := optionCount(t, db, "tea"); got != 1 {
		t.Errorf("tea count = %d, want 1", got)
	}
}

func TestSubmitDuplicateUsernameKeepsCountsIntact(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "alice", "coffee")

	_, err := repo.Submit(context.Background(), domain.Vote{
		Username:        "alice",
		SelectedOptions: domain.OptionList{"coffee"},
		SubmitTime:      time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("err = %v, want ErrDuplicateUsername", err)
	}
	if got := optionCount(t, db, "coffee"); got != 1 {
		t.Errorf("coffee count = %d, want 1 after rejected duplicate", got)
	}
}

func TestSubmitUnknownOptionIsIgnored(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "alice", "coffee", "mystery")

	if got := optionCount(t, db, "coffee"); got != 1 {
		t.Errorf("coffee count = %d, want 1", got)
	}
}

func TestSubmitCreditsInactiveOption(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "retired", Order: 1, IsActive: false})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "alice", "retired")

	if got := optionCount(t, db, "retired"); got != 1 {
		t.Errorf("retired count = %d, want 1 on direct submit", got)
	}
}

func TestUpdateUnwindsOldAndAppliesNew(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db,
		domain.Option{Text: "coffee", Order: 1, IsActive: true},
		domain.Option{Text: "tea", Order: 2, IsActive: true},
		domain.Option{Text: "retired", Order: 3, IsActive: false},
	)
	repo := NewVoteRepository(db)

	vote := submitVote(t, repo, "alice", "coffee")

	err := repo.Update(context.Background(), vote.ID, "alice", domain.OptionList{"tea", "retired"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := optionCount(t, db, "coffee"); got != 0 {
		t.Errorf("coffee count = %d, want 0 after unwind", got)
	}
	if got := optionCount(t, db, "tea"); got != 1 {
		t.Errorf("tea count = %d, want 1", got)
	}
	// Retired options never regain tally through edits.
	if got := optionCount(t, db, "retired"); got != 0 {
		t.Errorf("retired count = %d, want 0 after edit", got)
	}
}

func TestUpdateWithSameOptionsIsANoopForCounters(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	vote := submitVote(t, repo, "alice", "coffee")

	if err := repo.Update(context.Background(), vote.ID, "alice", domain.OptionList{"coffee"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := optionCount(t, db, "coffee"); got != 1 {
		t.Errorf("coffee count = %d, want 1 after identity edit", got)
	}
}

func TestUpdateMissingVote(t *testing.T) {
	db := newTestDB(t)
	repo := NewVoteRepository(db)

	err := repo.Update(context.Background(), 999, "alice", domain.OptionList{"coffee"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRenameOntoExistingUsername(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "alice", "coffee")
	bob := submitVote(t, repo, "bob", "coffee")

	err := repo.Update(context.Background(), bob.ID, "alice", domain.OptionList{"coffee"})
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("err = %v, want ErrDuplicateUsername", err)
	}
	// The rejected rename must leave both contributions standing.
	if got := optionCount(t, db, "coffee"); got != 2 {
		t.Errorf("coffee count = %d, want 2", got)
	}
}

func TestDeleteUnwindsCounters(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	vote := submitVote(t, repo, "alice", "coffee")

	if err := repo.Delete(context.Background(), vote.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := optionCount(t, db, "coffee"); got != 0 {
		t.Errorf("coffee count = %d, want 0", got)
	}
	if _, err := repo.FindByUsername(context.Background(), "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("find after delete = %v, want ErrNotFound", err)
	}
}

func TestDecrementFloorsAtZero(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	vote := submitVote(t, repo, "alice", "coffee")

	// Simulate drift: the counter was reset out of band before the delete.
	if err := db.Exec("UPDATE vote_options SET vote_count = 0").Error; err != nil {
		t.Fatalf("reset counts: %v", err)
	}
	if err := repo.Delete(context.Background(), vote.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := optionCount(t, db, "coffee"); got != 0 {
		t.Errorf("coffee count = %d, want floor at 0", got)
	}
}

func TestDeleteByUsername(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "alice", "coffee")

	if err := repo.DeleteByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("delete by username: %v", err)
	}
	if got := optionCount(t, db, "coffee"); got != 0 {
		t.Errorf("coffee count = %d, want 0", got)
	}

	err := repo.DeleteByUsername(context.Background(), "alice")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestReplaceAllRecountsFromScratch(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db,
		domain.Option{Text: "coffee", Order: 1, IsActive: true},
		domain.Option{Text: "retired", Order: 2, IsActive: false},
	)
	repo := NewVoteRepository(db)

	submitVote(t, repo, "old-user", "coffee")

	submitted := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rows := []domain.Vote{
		{ID: 7, Username: "alice", SelectedOptions: domain.OptionList{"coffee"}, SubmitTime: submitted},
		{ID: 8, Username: "bob", SelectedOptions: domain.OptionList{"coffee", "retired"}, SubmitTime: submitted.Add(time.Minute)},
	}

	count, err := repo.ReplaceAll(context.Background(), rows)
	if err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if count != 2 {
		t.Errorf("restored count = %d, want 2", count)
	}

	total, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Errorf("vote rows = %d, want 2 (old data replaced)", total)
	}

	if got := optionCount(t, db, "coffee"); got != 2 {
		t.Errorf("coffee count = %d, want 2 after recount", got)
	}
	if got := optionCount(t, db, "retired"); got != 0 {
		t.Errorf("retired count = %d, want 0 (inactive skipped on restore)", got)
	}

	votes, err := repo.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if votes[0].ID != 8 || votes[1].ID != 7 {
		t.Errorf("restored ids = %d,%d, want 8,7 newest first", votes[0].ID, votes[1].ID)
	}
	if !votes[1].SubmitTime.Equal(submitted) {
		t.Errorf("submit time = %v, want preserved %v", votes[1].SubmitTime, submitted)
	}
}

func TestReplaceAllDuplicateUsernamesRollBack(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "old-user", "coffee")

	// Rows are inserted with no application-level dedup; the unique index on
	// username rejects the second row and the whole restore rolls back.
	_, err := repo.ReplaceAll(context.Background(), []domain.Vote{
		{ID: 7, Username: "alice", SelectedOptions: domain.OptionList{"coffee"}},
		{ID: 8, Username: "alice", SelectedOptions: domain.OptionList{"coffee"}},
	})
	if err == nil {
		t.Fatal("expected restore to fail on duplicate usernames")
	}

	total, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Errorf("vote rows = %d, want prior state retained", total)
	}
	if _, err := repo.FindByUsername(context.Background(), "old-user"); err != nil {
		t.Errorf("prior vote gone after failed restore: %v", err)
	}
	if got := optionCount(t, db, "coffee"); got != 1 {
		t.Errorf("coffee count = %d, want 1 (counters untouched)", got)
	}
}

func TestReplaceAllEmptyWipesVotesAndCounts(t *testing.T) {
	db := newTestDB(t)
	seedOptions(t, db, domain.Option{Text: "coffee", Order: 1, IsActive: true})
	repo := NewVoteRepository(db)

	submitVote(t, repo, "alice", "coffee")

	count, err := repo.ReplaceAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if count != 0 {
		t.Errorf("restored count = %d, want 0", count)
	}

	total, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Errorf("vote rows = %d, want 0", total)
	}
	if got := optionCount(t, db, "coffee"); got != 0 {
		t.Errorf("coffee count = %d, want 0 after wipe", got)
	}
}

func TestReplaceAllFillsZeroTimestamps(t *testing.T) {
	db := newTestDB(t)
	repo := NewVoteRepository(db)

	if _, err := repo.ReplaceAll(context.Background(), []domain.Vote{
		{Username: "alice", SelectedOptions: domain.OptionList{"coffee"}},
	}); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	vote, err := repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if vote.SubmitTime.IsZero() || vote.CreateTime.IsZero() || vote.UpdateTime.IsZero() {
		t.Errorf("timestamps not backfilled: %+v", vote)
	}
}

func TestListFiltersCaseInsensitively(t *testing.T) {
	db := newTestDB(t)
	repo := NewVoteRepository(db)

	base := time.Now().UTC()
	for i, v := range []domain.Vote{
		{Username: "Alice", SelectedOptions: domain.OptionList{"Coffee"}},
		{Username: "bob", SelectedOptions: domain.OptionList{"tea"}},
		{Username: "carol", SelectedOptions: domain.OptionList{"iced coffee"}},
	} {
		v.SubmitTime = base.Add(time.Duration(i) * time.Minute)
		if _, err := repo.Submit(context.Background(), v); err != nil {
			t.Fatalf("submit %q: %v", v.Username, err)
		}
	}

	votes, err := repo.List(context.Background(), "COFFEE")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(votes) != 2 {
		t.Fatalf("filtered votes = %d, want 2", len(votes))
	}
	// Newest first.
	if votes[0].Username != "carol" || votes[1].Username != "Alice" {
		t.Errorf("order = %s,%s, want carol,Alice", votes[0].Username, votes[1].Username)
	}
}
