package store

import (
	"context"
	"sync"
	"time"
)

// eventLocks hands out one exclusive lock per event ID so that all
// register/cancel work for the same event is serialized in-process, while
// operations on different events proceed fully in parallel. The database row
// lock still guards against other processes; this layer adds the bounded
// wait the row lock alone does not give us.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]chan struct{})}
}

func (l *eventLocks) get(eventID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[eventID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[eventID] = ch
	}
	return ch
}

// Acquire blocks until the event's lock is free, the wait bound expires, or
// ctx is done. On success it returns a release func that must be called
// exactly once.
func (l *eventLocks) Acquire(ctx context.Context, eventID string, wait time.Duration) (func(), error) {
	ch := l.get(eventID)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
