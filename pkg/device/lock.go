package device

import (
	"context"
	"sync"
)

// Locker serializes configuration sessions per physical router. A router
// cannot safely process two concurrent configuration sessions.
//
// Lock blocks until the lock for router is held or ctx is done; the returned
// function releases it and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, router string) (unlock func(), err error)
}

// LocalLocker serializes configuration sessions within one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(router string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[router]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[router] = ch
	}
	return ch
}

// Lock acquires the in-process lock for router.
func (l *LocalLocker) Lock(ctx context.Context, router string) (func(), error) {
	ch := l.slot(router)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
