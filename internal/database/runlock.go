package database

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryRunLocker implements lifecycle.RunLocker on top of Postgres
// session-level advisory locks, the same primitive this repository's
// testutil/integration suite uses for cross-connection cleanup
// serialization. cmd/payrollctl runs each subcommand as a separate OS
// process, so a Go-level sync.Mutex can't prevent two concurrent "compute
// <run>" invocations from racing each other — only a lock the database
// itself arbitrates can.
type AdvisoryRunLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryRunLocker(pool *pgxpool.Pool) *AdvisoryRunLocker {
	return &AdvisoryRunLocker{pool: pool}
}

// TryLock takes a dedicated connection and attempts pg_try_advisory_lock
// keyed by a hash of runID. Advisory locks are session-scoped, not
// pool-scoped, so the connection must stay checked out until release runs.
func (l *AdvisoryRunLocker) TryLock(ctx context.Context, runID string) (release func(), ok bool, err error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection for run lock: %w", err)
	}

	key := runLockKey(runID)
	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	return func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key)
		conn.Release()
	}, true, nil
}

func runLockKey(runID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	return int64(h.Sum64())
}
