package store

import "github.com/google/uuid"

// SearchIDGenerator names searches in logs.
type SearchIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 search ids, so that logs
// of concurrent searches sort by start time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the random
// source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
