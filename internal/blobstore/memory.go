package blobstore

import (
	"context"
	"sync"
)

// MemoryStore is a non-durable Store used in tests and as a fallback when
// no backend is configured.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailSaves makes every Save return this error, for exercising the
	// best-effort persistence path.
	FailSaves error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.blobs[key] = stored
	return nil
}
