// Package xlock provides the exchange lock shared by blocking and
// context-aware callers of a bus transport.
package xlock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Lock is a mutual exclusion lock with a blocking and a context-aware
// acquisition path. Both paths contend on the same semaphore so holders
// from either path exclude each other. Waiters are served in order.
// Lock is not reentrant.
type Lock struct {
	sem *semaphore.Weighted
}

// New creates a Lock.
func New() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the lock is acquired.
func (l *Lock) Lock() {
	// Acquire never fails with a background context.
	l.sem.Acquire(context.Background(), 1)
}

// LockContext waits for the lock until ctx is done.
// If an error is returned, the lock is not held.
func (l *Lock) LockContext(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Unlock releases the lock. It panics if the lock is not held.
func (l *Lock) Unlock() {
	l.sem.Release(1)
}
