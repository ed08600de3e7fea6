package cache

import (
	"context"
	"log/slog"

	"pocketbook/internal/kv"
)

var _ kv.Store = (*KVStore)(nil)

// KVStore is a read-through, write-through cache in front of another kv.Store.
// Misses are not cached, so a key written by another process appears as soon
// as it exists in the backend.
type KVStore struct {
	next   kv.Store
	cache  Cache[[]byte]
	logger *slog.Logger
}

func NewKVStore(next kv.Store, c Cache[[]byte], logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{next: next, cache: c, logger: logger}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return clone(v), true, nil
	}

	v, ok, err := s.next.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	s.cache.Set(key, clone(v))
	s.logger.DebugContext(ctx, "Cache filled from backend", "key", key)
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.next.Set(ctx, key, value); err != nil {
		// backend state is unknown now
		s.cache.Delete(key)
		return err
	}
	s.cache.Set(key, clone(value))
	return nil
}

func (s *KVStore) Clear(ctx context.Context) error {
	s.cache.Purge()
	return s.next.Clear(ctx)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
