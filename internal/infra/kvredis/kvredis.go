package kvredis

import (
	"context"
	"errors"
	"fmt"

	"bizzshort/internal/domain"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable) *Store {
	return &Store{client: client, prefix: "bizzshort:"}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, domain.ErrStorageUnavailable
	}
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s == nil || s.client == nil {
		return domain.ErrStorageUnavailable
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

var _ domain.KVStore = (*Store)(nil)
