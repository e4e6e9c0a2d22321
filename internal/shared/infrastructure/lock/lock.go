// Package lock provides short-lived named locks so that overlapping job
// runs never write the same user's cache rows at once.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotHeld is returned when releasing a lock this holder does not own.
var ErrNotHeld = errors.New("lock not held")

// Locker acquires and releases named locks.
type Locker interface {
	// TryAcquire takes the lock without waiting. It returns a release
	// func when acquired and ok=false when someone else holds it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// MemoryLocker is a process-local Locker. Used in local mode and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLease
	now   func() time.Time
	token uint64
}

type memoryLease struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker creates an empty in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryLease), now: time.Now}
}

// TryAcquire implements Locker. Expired leases are reclaimed.
func (l *MemoryLocker) TryAcquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.held[name]; ok && now.Before(lease.expires) {
		return nil, false, nil
	}

	l.token++
	token := l.token
	l.held[name] = memoryLease{token: token, expires: now.Add(ttl)}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[name]; !ok || lease.token != token {
			return ErrNotHeld
		}
		delete(l.held, name)
		return nil
	}
	return release, true, nil
}
