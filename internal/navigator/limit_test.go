package navigator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithLaunchLimitCapsConcurrentAcquires(t *testing.T) {
	var inFlight, peak int32
	inner := &fakeNavigator{
		session: &fakeSession{id: "s"},
		acquire: func(context.Context) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		},
	}
	nav := WithLaunchLimit(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := nav.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Fatalf("peak concurrent acquires = %d, want <= 2", peak)
	}
}

func TestWithLaunchLimitHonoursCancel(t *testing.T) {
	block := make(chan struct{})
	inner := &fakeNavigator{
		session: &fakeSession{id: "s"},
		acquire: func(context.Context) { <-block },
	}
	nav := WithLaunchLimit(inner, 1)
	defer close(block)

	go nav.Acquire(context.Background())
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := nav.Acquire(ctx); err == nil {
		t.Fatal("Acquire() error = nil, want context error while slot is held")
	}
}

func TestWithLaunchLimitZeroIsUnlimited(t *testing.T) {
	inner := &fakeNavigator{session: &fakeSession{}}
	if got := WithLaunchLimit(inner, 0); got != Navigator(inner) {
		t.Fatal("limit 0 should return the inner navigator")
	}
}
