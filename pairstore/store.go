// Package pairstore hands received stereo pairs to the vision pipeline
// through a key-value store with expiry, either in memory (go-cache) or in
// Redis when the pipeline runs in another process.
package pairstore

import (
	"context"
	"time"
)

// Store is a typed key-value store with per-item expiry. Implementations are
// safe for concurrent use.
type Store[T any] interface {
	// Set stores value under key, replacing any previous value.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The key to set
	//   - value: The value to store
	//   - ttl: Time-to-live; 0 uses the store default
	//
	// Returns:
	//   - An error if the value could not be stored
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// Get returns the value stored under key.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The key to look up
	//
	// Returns:
	//   - The value and true if present, or the zero value and false
	//   - An error if the lookup failed
	Get(ctx context.Context, key string) (T, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every item owned by the store.
	Clear(ctx context.Context) error

	// ItemCount returns the number of items owned by the store.
	ItemCount(ctx context.Context) (int, error)
}
