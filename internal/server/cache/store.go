// Package cache implements the viewer-scoped history cache: a key-value
// store contract with expiry, the key scheme, and the synchronizer that
// keeps cached projections bounded and fresh.
//
// The cache is strictly advisory. The durable store stays authoritative:
// a missing, stale or corrupted entry degrades to a store round trip and
// must never fail the enclosing operation.
package cache

import (
	"context"
	"time"
)

// Store is the key-value contract the cache layers build on. Get returns
// common.ErrorNotFound on a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
