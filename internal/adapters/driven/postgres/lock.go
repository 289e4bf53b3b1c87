package postgres

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock using PostgreSQL advisory locks.
// Advisory locks are connection-scoped, not TTL-based: the TTL parameter is
// ignored and Extend always succeeds. A lost connection releases the lock.
// The Redis lock is preferred for multi-worker deployments; this is the
// fallback when Redis is not configured.
type AdvisoryLock struct {
	db *DB
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db}
}

// hashLockName converts a lock name to the 64-bit key advisory locks need.
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("lingua:lock:" + name))
	return int64(h.Sum64())
}

// Acquire attempts to take a named advisory lock without blocking.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", hashLockName(name)).Scan(&acquired)
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release releases a named advisory lock. Releasing a lock that is not held
// is not an error.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	var released bool
	return l.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", hashLockName(name)).Scan(&released)
}

// Extend reports success without doing anything; advisory locks do not
// expire while the connection lives.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return true, nil
}
