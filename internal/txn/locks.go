// Package txn provides the transaction runtime: table locking, snapshot
// reads over the journal, and the five-phase commit protocol against the
// cache, the indices, and the backing store.
package txn

import (
	"context"
	"sort"
	"sync"

	"github.com/quern/quern/internal/errors"
)

// lockMode distinguishes shared from exclusive acquisition.
type lockMode int

const (
	lockRead lockMode = iota
	lockWrite
)

// tableLock is a reader-writer lock with waiter wakeup suitable for
// context-cancellable acquisition.
type tableLock struct {
	mu      sync.Mutex
	readers int
	writer  bool
	waiters []chan struct{}
}

func (l *tableLock) tryAcquire(mode lockMode) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mode == lockRead {
		if l.writer {
			return false
		}
		l.readers++
		return true
	}
	if l.writer || l.readers > 0 {
		return false
	}
	l.writer = true
	return true
}

func (l *tableLock) acquire(ctx context.Context, mode lockMode) error {
	for {
		if l.tryAcquire(mode) {
			return nil
		}
		ch := make(chan struct{}, 1)
		l.mu.Lock()
		l.waiters = append(l.waiters, ch)
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			l.dropWaiter(ch)
			return errors.NewCancelled("lock acquisition cancelled")
		}
	}
}

func (l *tableLock) release(mode lockMode) {
	l.mu.Lock()
	if mode == lockRead {
		l.readers--
	} else {
		l.writer = false
	}
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (l *tableLock) dropWaiter(ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

// LockRequest names a table and the mode it is needed in.
type LockRequest struct {
	Table string
	Write bool
}

// LockManager hands out per-table reader-writer locks. Acquisition is
// always in lexicographic table-name order, which precludes deadlock.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*tableLock
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*tableLock)}
}

func (m *LockManager) lockFor(table string) *tableLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[table]
	if !ok {
		l = &tableLock{}
		m.locks[table] = l
	}
	return l
}

// Acquire takes every requested lock, ordered by table name. When a request
// names the same table in both modes the write wins. On cancellation every
// lock taken so far is released.
func (m *LockManager) Acquire(ctx context.Context, requests []LockRequest) error {
	merged := make(map[string]lockMode)
	for _, r := range requests {
		mode := lockRead
		if r.Write {
			mode = lockWrite
		}
		if existing, ok := merged[r.Table]; !ok || mode > existing {
			merged[r.Table] = mode
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	var taken []string
	for _, name := range names {
		if err := m.lockFor(name).acquire(ctx, merged[name]); err != nil {
			for _, t := range taken {
				m.lockFor(t).release(merged[t])
			}
			return err
		}
		taken = append(taken, name)
	}
	return nil
}

// Release returns every lock of a prior successful Acquire.
func (m *LockManager) Release(requests []LockRequest) {
	merged := make(map[string]lockMode)
	for _, r := range requests {
		mode := lockRead
		if r.Write {
			mode = lockWrite
		}
		if existing, ok := merged[r.Table]; !ok || mode > existing {
			merged[r.Table] = mode
		}
	}
	for name, mode := range merged {
		m.lockFor(name).release(mode)
	}
}
