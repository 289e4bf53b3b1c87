package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates exclusive operations across worker instances,
// e.g. the atomic unit replace during file extraction.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if acquired, false if already held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock if held by this instance.
	Release(ctx context.Context, name string) error

	// Extend refreshes the TTL of a lock held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) (bool, error)
}
