package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLocker_Serializes(t *testing.T) {
	l := NewLocalLocker()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "router2")
			if err != nil {
				t.Errorf("Lock error = %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestLocalLocker_IndependentRouters(t *testing.T) {
	l := NewLocalLocker()

	unlock1, err := l.Lock(context.Background(), "router1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlock2, err := l.Lock(ctx, "router2")
	if err != nil {
		t.Fatalf("locking a different router should not block: %v", err)
	}
	unlock2()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "router2")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "router2"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock error = %v, want DeadlineExceeded", err)
	}

	// Double unlock must not release someone else's hold.
	unlock()
	unlock()

	unlockAgain, err := l.Lock(context.Background(), "router2")
	if err != nil {
		t.Fatalf("Lock after unlock error = %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := l.Lock(ctx2, "router2"); err == nil {
		t.Error("router2 should still be held")
	}
	unlockAgain()
}
