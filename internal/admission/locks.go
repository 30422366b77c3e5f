package admission

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockWaitTimeout is returned when a submission gave up waiting for
// the per-item critical section. It is a retryable condition: the caller
// must re-read current state before retrying, never treat it as a
// rejection.
var ErrLockWaitTimeout = errors.New("timed out waiting for item lock")

// itemLocks provides one mutual-exclusion section per item id. Each lock
// is a capacity-one channel so acquisition can respect both the caller's
// context and a wait timeout. Items are independent; submissions on
// different items never contend.
type itemLocks struct {
	locks sync.Map // map[string]chan struct{}
}

func (l *itemLocks) lockFor(itemID string) chan struct{} {
	if ch, ok := l.locks.Load(itemID); ok {
		return ch.(chan struct{})
	}
	ch, _ := l.locks.LoadOrStore(itemID, make(chan struct{}, 1))
	return ch.(chan struct{})
}

// acquire blocks until the item's section is free, the context is done,
// or the timeout elapses. On success the returned func releases the
// section.
func (l *itemLocks) acquire(ctx context.Context, itemID string, timeout time.Duration) (func(), error) {
	ch := l.lockFor(itemID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockWaitTimeout
	}
}
