package ports

import (
	"context"
	"time"
)

// CacheStore is the cache/lock contract the idempotency pipeline needs:
// result-cache reads and writes plus atomic lease acquisition. Implementations
// prefix every key with a configurable namespace.
//
// The store is an availability optimization, never the source of truth. A
// miss and an infrastructure failure are distinct outcomes so callers can
// degrade deliberately.
type CacheStore interface {
	// Get returns the value and whether the key exists. A miss is not an
	// error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value with a TTL, overwriting any existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores the value only if the key is absent, atomically. Returns
	// true when this call won the key, false when a holder already exists.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes the key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Ping verifies connectivity, for health probes.
	Ping(ctx context.Context) error
}
