package session

import (
	"context"
	"sync"

	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/research"
)

// MemoryStore keeps results in process memory, newest appended last. Intended
// for tests and single-node deployments without external storage.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]research.Result
	order   []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]research.Result)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, result research.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.ID]; !exists {
		s.order = append(s.order, result.ID)
	}
	s.results[result.ID] = result
	metrics.StoreAppends.WithLabelValues("memory", "ok").Inc()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (research.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return research.Result{}, ErrNotFound
	}
	return r, nil
}

// List implements Store. Results come back newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]research.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]research.Summary, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, summarize(s.results[s.order[i]]))
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
