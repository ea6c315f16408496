package lifecycle

import (
	"context"
	"sync"
)

// RunLocker serializes compute and lifecycle transitions against the same
// Run (spec §5: "Two concurrent compute calls for the same Run are
// forbidden ... the loser fails with IllegalState. Lifecycle transitions on
// the same Run are serialised by the same mutex."). TryLock is non-blocking:
// the caller that loses the race gets ok=false immediately rather than
// queueing behind the winner.
type RunLocker interface {
	TryLock(ctx context.Context, runID string) (release func(), ok bool, err error)
}

// InProcessRunLocker is a sync.Map-backed RunLocker, correct only for
// callers sharing one process's memory (tests, a long-lived server). It is
// NOT sufficient for cmd/payrollctl, where two concurrent "compute" calls
// are two separate OS processes with no shared memory to lock —
// database.AdvisoryRunLocker covers that case instead.
type InProcessRunLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewInProcessRunLocker() *InProcessRunLocker {
	return &InProcessRunLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *InProcessRunLocker) TryLock(ctx context.Context, runID string) (func(), bool, error) {
	l.mu.Lock()
	m, ok := l.locks[runID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[runID] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}
	return m.Unlock, true, nil
}
