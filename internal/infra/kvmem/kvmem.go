package kvmem

import (
	"context"
	"sync"

	"bizzshort/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func New() *Store {
	return &Store{
		entries: make(map[string][]byte),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil {
		return nil, domain.ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyBytes(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s == nil {
		return domain.ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = copyBytes(value)
	return nil
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

var _ domain.KVStore = (*Store)(nil)
