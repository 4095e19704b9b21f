// Package cache provides the summary document cache and the recompute lock.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotReady is returned when a summary is not cached and another worker
// already holds the recompute lock for it.
var ErrNotReady = errors.New("cache: result not ready, computation in progress")

// Store is the cache backend. Values are JSON documents keyed by a versioned
// key that encodes the query window.
type Store interface {
	// GetJSON unmarshals the cached document into out. The second return
	// is false on a miss.
	GetJSON(ctx context.Context, key string, out any) (bool, error)

	// SetJSON marshals value and stores it under key for ttl.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	// AcquireLock takes the named lock for ttl. It returns false when the
	// lock is already held.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// ReleaseLock drops the named lock. Releasing a lock that expired is
	// not an error.
	ReleaseLock(ctx context.Context, name string) error

	Close() error
}
