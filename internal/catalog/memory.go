package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

// MemoryStore keeps catalogs in memory for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	catalogs map[string][]refresh.Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{catalogs: make(map[string][]refresh.Entry)}
}

// Seed installs a catalog under path.
func (s *MemoryStore) Seed(path string, entries []refresh.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogs[path] = cloneEntries(entries)
}

// Load returns a copy of the catalog at path.
func (s *MemoryStore) Load(_ context.Context, path string) ([]refresh.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.catalogs[path]
	if !ok {
		return nil, fmt.Errorf("no catalog at %q", path)
	}
	return cloneEntries(entries), nil
}

// Save stores a copy of entries under path.
func (s *MemoryStore) Save(_ context.Context, path string, entries []refresh.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogs[path] = cloneEntries(entries)
	return nil
}

func cloneEntries(entries []refresh.Entry) []refresh.Entry {
	out := make([]refresh.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
