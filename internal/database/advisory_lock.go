package database

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/domain-migration-engine/internal/logging"
)

// lockNamespace prefixes lock keys so they cannot collide with advisory
// locks taken by other applications sharing the database.
const lockNamespace = "domain-migration:"

// LockKey derives the advisory lock identifier for a domain with FNV-1a.
func LockKey(domain string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockNamespace + domain))

	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // intentional truncation for advisory lock key
}

// LockHandle wraps a dedicated pooled connection that holds a
// session-level advisory lock. Call Release to unlock and return
// the connection to the pool.
type LockHandle struct {
	conn *pgxpool.Conn
	key  int64
}

// TryAcquireLock attempts to acquire the session-level advisory lock key.
// Returns ErrLockNotAcquired if another session holds it. The caller must
// call handle.Release() when done.
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool, key int64) (*LockHandle, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for advisory lock: %w", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, ErrLockNotAcquired
	}

	return &LockHandle{conn: conn, key: key}, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
// When the unlock fails the connection is closed instead, which ends the
// session and with it the lock. Safe to call multiple times; subsequent
// calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	conn := h.conn
	h.conn = nil

	_, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", h.key)
	if err != nil {
		closeErr := conn.Conn().Close(context.WithoutCancel(ctx))
		conn.Release()

		if closeErr != nil {
			return fmt.Errorf("releasing advisory lock: %w (closing session: %w)", err, closeErr)
		}

		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	conn.Release()

	return nil
}

// LockerOption configures an AdvisoryLocker.
type LockerOption func(*AdvisoryLocker)

// WithLockLogger sets the logger that reports failed unlocks.
func WithLockLogger(l *slog.Logger) LockerOption {
	return func(a *AdvisoryLocker) { a.logger = l }
}

// AdvisoryLocker serializes migration of a domain across processes with
// one advisory lock per domain.
type AdvisoryLocker struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAdvisoryLocker creates a locker backed by the pool.
func NewAdvisoryLocker(pool *pgxpool.Pool, opts ...LockerOption) *AdvisoryLocker {
	l := &AdvisoryLocker{pool: pool, logger: logging.Discard()}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Acquire takes the domain's lock without waiting. The returned release
// function unlocks it; a failed unlock is logged.
func (l *AdvisoryLocker) Acquire(ctx context.Context, domain string) (func(), error) {
	h, err := TryAcquireLock(ctx, l.pool, LockKey(domain))
	if err != nil {
		return nil, fmt.Errorf("domain %s: %w", domain, err)
	}

	return func() {
		if err := h.Release(context.WithoutCancel(ctx)); err != nil {
			l.logger.ErrorContext(ctx, "advisory unlock failed, session closed", "domain", domain, "error", err)
		}
	}, nil
}
