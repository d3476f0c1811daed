package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	domrepo "LoadCast/internal/domain/repository"
)

// RedisBlobStore implements BlobStore on Redis. Used when several
// forecaster instances need to share one model set; the embedded Badger
// store stays the single-node default.
type RedisBlobStore struct {
	client *redis.Client
	prefix string
}

func NewRedisBlobStore(client *redis.Client, prefix string) *RedisBlobStore {
	if prefix == "" {
		prefix = "loadcast:models:"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisBlobStore{client: client, prefix: prefix}
}

var _ domrepo.BlobStore = (*RedisBlobStore)(nil)

func (s *RedisBlobStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisBlobStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	blob, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return blob, true, nil
}

func (s *RedisBlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisBlobStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func (s *RedisBlobStore) Close() error {
	return s.client.Close()
}
