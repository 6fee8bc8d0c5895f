package domain

import (
	"time"
)

type VoteID int64

// Vote is one user's persisted submission. Username is the natural key:
// at most one Vote may exist per username, enforced by a unique index.
type Vote struct {
	ID              VoteID     `gorm:"column:id;primaryKey;autoIncrement"`
	Username        string     `gorm:"column:username;type:text;not null;uniqueIndex:idx_votes_username"`
	SelectedOptions OptionList `gorm:"column:selected_options;type:text;not null"`
	SubmitTime      time.Time  `gorm:"column:submit_time;not null;index:idx_votes_submit_time"`
	IPAddress       string     `gorm:"column:ip_address;type:text"`
	UserAgent       string     `gorm:"column:user_agent;type:text"`
	IsDeleted       bool       `gorm:"column:is_deleted;not null;default:false"`
	CreateTime      time.Time  `gorm:"column:create_time;autoCreateTime"`
	UpdateTime      time.Time  `gorm:"column:update_time;autoUpdateTime"`
}

// Option is a selectable choice with its denormalized running tally.
// The catalog (text, order, active) is managed by seeding/config; the voting
// core only ever mutates VoteCount.
type Option struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Text       string    `gorm:"column:option_text;type:text;not null;uniqueIndex:idx_vote_options_text"`
	VoteCount  int64     `gorm:"column:vote_count;not null;default:0"`
	Order      int       `gorm:"column:option_order;not null;default:0"`
	// No default tag here: GORM drops zero-valued fields that carry one on
	// Create, which would silently turn a retired option back on.
	IsActive   bool      `gorm:"column:is_active;not null"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime"`
}

// ConfigKeyBackupVersion is the system_config entry stamped into backup
// envelopes.
const ConfigKeyBackupVersion = "backup_version"

// ConfigEntry is a row of the system_config key/value table.
type ConfigEntry struct {
	Key   string `gorm:"column:config_key;primaryKey;type:text"`
	Value string `gorm:"column:config_value;type:text"`
}

// Statistics is the aggregate projection served to the admin dashboard.
// TotalVotes counts option selections (a voter picking 3 options adds 3),
// VoterCount counts vote rows; the two are deliberately distinct.
type Statistics struct {
	TotalVotes   int64            `json:"totalVotes"`
	VoterCount   int64            `json:"voterCount"`
	OptionCounts map[string]int64 `json:"optionCounts"`
}

func (Vote) TableName() string { return "votes" }

func (Option) TableName() string { return "vote_options" }

func (ConfigEntry) TableName() string { return "system_config" }
