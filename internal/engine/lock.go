package engine

import (
	"context"
	"sync"
)

// Locker serializes merge runs per owner.
//
// Lock blocks until the owner's lock is held or ctx is done. The returned
// unlock function must be called exactly once; calling it again is a no-op.
// Implemented by OwnerLocks (in-process) and redislock.Locker (cross-process).
type Locker interface {
	Lock(ctx context.Context, ownerID string) (unlock func(), err error)
}

// OwnerLocks is an in-process Locker keyed by owner ID.
//
// Entries are reference counted and dropped when the last holder or waiter
// leaves, so the map only holds owners with a merge in flight.
//
// Thread-safety: OwnerLocks is safe for concurrent use. The zero value is
// ready to use.
type OwnerLocks struct {
	mu      sync.Mutex
	entries map[string]*ownerLock
}

type ownerLock struct {
	sem  chan struct{}
	refs int
}

// NewOwnerLocks creates an empty in-process lock table.
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{}
}

// Lock implements Locker.
func (l *OwnerLocks) Lock(ctx context.Context, ownerID string) (func(), error) {
	entry := l.acquire(ownerID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(ownerID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(ownerID, entry)
		})
	}, nil
}

func (l *OwnerLocks) acquire(ownerID string) *ownerLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[string]*ownerLock)
	}
	entry, ok := l.entries[ownerID]
	if !ok {
		entry = &ownerLock{sem: make(chan struct{}, 1)}
		l.entries[ownerID] = entry
	}
	entry.refs++
	return entry
}

func (l *OwnerLocks) release(ownerID string, entry *ownerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, ownerID)
	}
}

// held reports how many owners currently have a lock entry.
// Used for testing.
func (l *OwnerLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
