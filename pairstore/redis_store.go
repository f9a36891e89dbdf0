package pairstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisStore is a Store backed by Redis. Values are JSON encoded and every
// key is namespaced under prefix, so Clear and ItemCount only touch keys
// this store wrote. Concurrent Gets of one key share a single round trip
// and decoded value, so callers must not modify what Get returns.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	group  singleflight.Group
}

// NewRedisStore creates a RedisStore.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := NewRedisStore[framing.Pair](client, "stereolink:")
//
// Parameters:
//   - client: A connected go-redis client
//   - prefix: Namespace prepended to every key
//
// Returns:
//   - A new RedisStore
func NewRedisStore[T any](client *redis.Client, prefix string) *RedisStore[T] {
	return &RedisStore[T]{client: client, prefix: prefix}
}

// Set stores value as JSON under key. A ttl of 0 keeps it forever.
func (s *RedisStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Get returns the value stored under key and whether it was found.
// Concurrent Gets of one key share a fetch that is not cancelled by any
// single caller; each caller still returns as soon as its own ctx is done.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		data, err := s.client.Get(fetchCtx, s.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("redis get error: %w", err)
		}

		var result T
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached value: %w", err)
		}

		return result, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		return zero, false, res.Err
	}

	val := res.Val
	if val == nil {
		return zero, false, nil
	}

	return val.(T), true, nil
}

// Delete removes key.
func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Clear removes every key under the store prefix.
func (s *RedisStore[T]) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}

	return nil
}

// ItemCount returns the number of keys under the store prefix.
func (s *RedisStore[T]) ItemCount(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

// keys lists the store's keys using SCAN.
func (s *RedisStore[T]) keys(ctx context.Context) ([]string, error) {
	var keys []string

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	return keys, nil
}
