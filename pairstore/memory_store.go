package pairstore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store backed by go-cache.
type MemoryStore[T any] struct {
	cache *cache.Cache
}

// NewMemoryStore creates a MemoryStore.
//
// Parameters:
//   - defaultExpiration: TTL used when Set is called with ttl 0
//     (cache.NoExpiration keeps items forever)
//   - cleanupInterval: How often expired items are purged
//
// Returns:
//   - A new MemoryStore
func NewMemoryStore[T any](defaultExpiration, cleanupInterval time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

// Set stores value under key. A ttl of 0 uses the default expiration.
func (s *MemoryStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = cache.DefaultExpiration
	}

	s.cache.Set(key, value, ttl)
	return nil
}

// Get returns the value stored under key and whether it was found.
func (s *MemoryStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	val, found := s.cache.Get(key)
	if !found {
		return zero, false, nil
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false, nil
	}

	return typed, true, nil
}

// Delete removes key.
func (s *MemoryStore[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cache.Delete(key)
	return nil
}

// Clear removes every item.
func (s *MemoryStore[T]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cache.Flush()
	return nil
}

// ItemCount returns the number of items, including expired ones not yet purged.
func (s *MemoryStore[T]) ItemCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return s.cache.ItemCount(), nil
}
