package store

import (
	"context"
	"sync"
)

// MemoryStore retains the most recent records in a bounded slice. Appends
// beyond capacity evict the oldest entry.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []BlockedRequest
	maxEntries int
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{maxEntries: maxEntries}
}

func (s *MemoryStore) Append(_ context.Context, record BlockedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	if len(s.records) > s.maxEntries {
		s.records = s.records[len(s.records)-s.maxEntries:]
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]BlockedRequest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.records)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	page := make([]BlockedRequest, end-offset)
	copy(page, s.records[offset:end])
	return page, total, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statsOf(s.records), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
