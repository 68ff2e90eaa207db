package testutil

import (
	"fmt"
	"sync"
)

// SequentialSearchIDs generates search-000001, search-000002, ... so that
// logs of a test run are reproducible.
//
// Thread-safety: All methods are safe for concurrent use.
type SequentialSearchIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialSearchIDs creates a generator whose first id is
// search-000001.
func NewSequentialSearchIDs() *SequentialSearchIDs {
	return &SequentialSearchIDs{}
}

// Generate returns the next id.
func (g *SequentialSearchIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("search-%06d", g.seq)
}

// Count returns how many ids were generated.
func (g *SequentialSearchIDs) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence.
func (g *SequentialSearchIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// FixedSearchID returns the same id for every search.
type FixedSearchID string

// Generate returns the fixed id, "search-default" when empty.
func (id FixedSearchID) Generate() string {
	if id == "" {
		return "search-default"
	}
	return string(id)
}
