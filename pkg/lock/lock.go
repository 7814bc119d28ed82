// Package lock serializes executions that spend from the same account.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLockTimeout is returned when a lock could not be acquired before the context ended.
var ErrLockTimeout = errors.New("timed out waiting for account lock")

// Locker grants exclusive access per key. Release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		slots: make(map[string]chan struct{}),
	}
}

func (m *MemoryLocker) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[key] = s
	}
	return s
}

// Acquire blocks until key is free or ctx is done.
func (m *MemoryLocker) Acquire(ctx context.Context, key string) (release func(), err error) {
	s := m.slot(key)

	select {
	case s <- struct{}{}:
	case <-ctx.Done():
		LockWaitTimeoutsTotal.WithLabelValues("memory").Inc()
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}

	LocksAcquiredTotal.WithLabelValues("memory").Inc()

	var once sync.Once
	release = func() {
		once.Do(func() { <-s })
	}

	return release, nil
}
