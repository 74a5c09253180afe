package session

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface assertion.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for single-instance deployments and
// tests. Safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string][]Entry)}
}

// Append implements [Store].
func (s *MemStore) Append(_ context.Context, sessionID string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		s.sessions[sessionID] = append(s.sessions[sessionID], e)
	}
	return nil
}

// Recent implements [Store].
func (s *MemStore) Recent(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sessions[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}
