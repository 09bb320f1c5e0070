package ports

import "context"

// Cache stores opaque provider responses by key.
// Expiration is a property of the implementation (see the adapters' WithTTL).
type Cache interface {
	// Get returns the cached value.
	// Returns domain.ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the live keys.
	Keys(ctx context.Context) ([]string, error)
}
