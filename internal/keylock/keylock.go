// Package keylock serialises work per key.
//
// The verification state machine reads state through a cache and then
// writes to a store that offers no compare-and-swap.  Two transitions for the
// same Discord id must therefore never interleave.  Local gives that
// guarantee inside one process; Redis extends it across processes.
package keylock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive hold on key.  The returned func releases it
// and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Distributed is implemented by Lockers that also exclude other processes.
// Callers holding such a lock cannot trust state cached in this process.
type Distributed interface {
	Distributed() bool
}

// Local is an in-process Locker backed by a refcounted map of mutexes.
// Idle keys are removed, so the map only holds keys currently in use.
type Local struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	ch   chan struct{} // 1-buffered; holding the token means holding the lock
	refs int
}

// NewLocal returns an empty Local.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	rm, ok := l.locks[key]
	if !ok {
		rm = &refMutex{ch: make(chan struct{}, 1)}
		l.locks[key] = rm
	}
	rm.refs++
	l.mu.Unlock()

	select {
	case rm.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, rm)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-rm.ch
			l.release(key, rm)
		})
	}, nil
}

func (l *Local) release(key string, rm *refMutex) {
	l.mu.Lock()
	rm.refs--
	if rm.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// Len reports how many keys are held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
