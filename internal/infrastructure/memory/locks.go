package memory

import (
	"context"
	"sync"
	"time"

	"slot-auction/internal/domain"
)

// rowLock is a shared/exclusive lock whose waiters can give up. A waiter that
// exceeds the timeout gets ErrTxConflict, the same way a MySQL lock wait
// timeout surfaces; a waiter whose context ends gets the context's error.
// Waiting writers block new readers, so a steady stream of shared holders
// cannot starve an exclusive request.
type rowLock struct {
	mu             sync.Mutex
	readers        int
	writer         bool
	writersWaiting int
	wake           chan struct{}
}

func (l *rowLock) acquire(ctx context.Context, exclusive bool, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	waiting := false
	defer func() {
		if waiting {
			l.mu.Lock()
			l.writersWaiting--
			l.broadcast()
			l.mu.Unlock()
		}
	}()

	for {
		l.mu.Lock()
		if exclusive && !l.writer && l.readers == 0 {
			l.writer = true
			if waiting {
				l.writersWaiting--
				waiting = false
			}
			l.mu.Unlock()
			return nil
		}
		if !exclusive && !l.writer && l.writersWaiting == 0 {
			l.readers++
			l.mu.Unlock()
			return nil
		}
		if exclusive && !waiting {
			l.writersWaiting++
			waiting = true
		}
		if l.wake == nil {
			l.wake = make(chan struct{})
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-wake:
		case <-deadline:
			return domain.ErrTxConflict
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *rowLock) release(exclusive bool) {
	l.mu.Lock()
	if exclusive {
		l.writer = false
	} else {
		l.readers--
	}
	l.broadcast()
	l.mu.Unlock()
}

// broadcast wakes every waiter. Callers hold l.mu.
func (l *rowLock) broadcast() {
	if l.wake != nil {
		close(l.wake)
		l.wake = nil
	}
}

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*rowLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*rowLock)}
}

func (t *lockTable) get(key string) *rowLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &rowLock{}
		t.locks[key] = l
	}
	return l
}
