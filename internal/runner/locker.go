package runner

import (
	"context"
	"fmt"
	"sync"
)

// Locker serializes migration of one domain. The release function must be
// called once the domain has committed or rolled back.
type Locker interface {
	Acquire(ctx context.Context, domain string) (release func(), err error)
}

// localLocker is an in-process keyed mutex, enough when a single process
// owns the datastore.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) Acquire(ctx context.Context, domain string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquiring lock for %s: %w", domain, err)
	}

	l.mu.Lock()

	m, ok := l.locks[domain]
	if !ok {
		m = &sync.Mutex{}
		l.locks[domain] = m
	}

	l.mu.Unlock()

	m.Lock()

	return m.Unlock, nil
}
