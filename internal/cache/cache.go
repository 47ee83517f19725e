// Package cache holds the best-effort key-value layer in front of the ledger
// store. Nothing here is durable: a miss or eviction only costs a store read.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is implemented by Redis and Memory.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfNewer stores value unless the key already holds a snapshot with a
	// greater version. It reports whether the value was written.
	SetIfNewer(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error)
	// Delete removes keys along with any version recorded by SetIfNewer.
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
