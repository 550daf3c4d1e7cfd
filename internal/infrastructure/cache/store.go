// Package cache implements the deduplication gate that guards the invoice
// pipeline against concurrent and duplicate triggers, together with its
// backing stores.
package cache

import (
	"context"
	"time"
)

// Store is the key-value backend of the deduplication gate. Implementations
// must make SetNX atomic; everything else in the gate builds on that.
type Store interface {
	// Get returns the value stored under key. The second return is false
	// when the key is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetNX stores value under key with a TTL only if the key is absent.
	// Returns true when the key was newly set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Set stores value under key with a TTL, overwriting any existing value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes key. Removing an absent key is not an error.
	Del(ctx context.Context, key string) error

	// TTL returns the remaining lifetime of key. The second return is false
	// when the key is absent.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	// Close releases resources held by the store.
	Close() error
}
