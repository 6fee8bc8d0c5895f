package domain

import "errors"

var (
	// ErrNotFound signals that a record addressed by id or username does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateUsername signals that a vote for the username already exists.
	// Repositories translate storage-level unique violations into it so the
	// check-then-insert race always surfaces as a conflict.
	ErrDuplicateUsername = errors.New("username already voted")
)
