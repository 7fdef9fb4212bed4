package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLocalRunsEveryUnit(t *testing.T) {
	var handled int32
	d := NewLocal(func(ctx context.Context, unit WorkUnit) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, 2)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := d.Dispatch(ctx, WorkUnit{Kind: KindProcessItem, OwnerID: "u1", ItemID: "i"}); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	d.Wait()

	if got := atomic.LoadInt32(&handled); got != 10 {
		t.Errorf("expected 10 handled units, got %d", got)
	}
}

func TestLocalBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	gate := make(chan struct{})
	d := NewLocal(func(ctx context.Context, unit WorkUnit) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		<-gate

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}, 3)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 8; i++ {
			d.Dispatch(ctx, WorkUnit{Kind: KindProcessItem})
		}
		close(done)
	}()

	close(gate)
	<-done
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 3 {
		t.Errorf("concurrency exceeded bound: peak %d", peak)
	}
}
