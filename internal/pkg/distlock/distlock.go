package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when extending or releasing a lock this process
// no longer owns.
var ErrNotHeld = errors.New("distlock: lock not held")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// AdvisoryKey maps a string key onto the int64 keyspace of PostgreSQL
// advisory locks. The same key always yields the same lock id, so it is
// also used for transaction-scoped per-promoter locks.
func AdvisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock pins one pooled
// connection from Acquire until Release. If the connection drops the server
// releases the lock, giving crash-safety similar to a Redis TTL.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: AdvisoryKey(key)}
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return true, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve lock connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns its connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return ErrNotHeld
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return closeErr
}
