package memory

import (
	"context"
	"sync"

	"staybook/internal/app/middleware"
)

// IdempotencyStore keeps idempotency records in process memory.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Reserve(_ context.Context, rec middleware.IdempotencyRecord) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.items[rec.Key]; ok {
		return held, false, nil
	}
	rec.Pending = true
	s.items[rec.Key] = rec
	return rec, true, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.items[rec.Key]; ok && !held.Pending {
		return nil
	}
	rec.Pending = false
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.items[key]; ok && held.Pending {
		delete(s.items, key)
	}
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
