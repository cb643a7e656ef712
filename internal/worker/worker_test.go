package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) {
		processed.Add(1)
	}

	pool := NewWorkerPool(2, 10, processor)
	pool.Start(context.Background())

	for i := 0; i < 5; i++ {
		if err := pool.Submit(i); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) {
		processed.Add(1)
	}

	pool := NewWorkerPool(4, 100, processor)
	pool.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pool.Submit(n)
		}(i)
	}
	wg.Wait()
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_StopDrainsQueue(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) {
		time.Sleep(5 * time.Millisecond)
		processed.Add(1)
	}

	pool := NewWorkerPool(2, 50, processor)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		pool.Submit(i)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	if processed.Load() != 20 {
		t.Errorf("expected every queued job to run, got %d", processed.Load())
	}
}

func TestWorkerPool_SubmitRejections(t *testing.T) {
	release := make(chan struct{})
	processor := func(ctx context.Context, job Job) {
		<-release
	}

	pool := NewWorkerPool(1, 1, processor)
	pool.Start(context.Background())

	// One job occupies the worker, one fills the buffer.
	pool.Submit(1)
	deadline := time.Now().Add(time.Second)
	for pool.Submit(2) != nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := pool.Submit(3); err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	pool.Stop()

	if err := pool.Submit(4); err != ErrStopped {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	pool.Stop()
}
