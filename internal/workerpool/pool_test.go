package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := New(4, 0)
	defer pool.Close()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Do(context.Background(), func() {
				atomic.AddInt64(&counter, 1)
			}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 64 {
		t.Fatalf("expected 64 executions, got %d", counter)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	pool := New(workers, 0)
	defer pool.Close()

	var running, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() {
				now := atomic.AddInt64(&running, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&running, -1)
			})
		}()
	}
	wg.Wait()

	if peak > workers {
		t.Fatalf("observed %d concurrent tasks with %d workers", peak, workers)
	}
}

func TestPoolBoundedQueueOverflow(t *testing.T) {
	pool := New(1, 1)
	defer pool.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() {
			close(started)
			<-block
		})
	}()
	<-started

	// Worker is busy; fill the single queue slot.
	queued := make(chan error, 1)
	go func() {
		queued <- pool.Do(context.Background(), func() {})
	}()

	deadline := time.Now().Add(time.Second)
	for len(pool.tasks) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("queue slot was never taken")
		}
		time.Sleep(time.Millisecond)
	}

	if err := pool.Do(context.Background(), func() {}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(block)
	if err := <-queued; err != nil {
		t.Fatalf("queued task should run after worker frees up: %v", err)
	}
}

func TestPoolDropsCancelledTask(t *testing.T) {
	pool := New(1, 0)
	defer pool.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() {
			close(started)
			<-block
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	err := pool.Do(ctx, func() { ran = true })
	close(block)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatal("cancelled task must not run")
	}
}

func TestPoolCloseWaitsForInflightWork(t *testing.T) {
	pool := New(2, 0)

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() {
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&done, 1)
			})
		}()
	}
	wg.Wait()
	pool.Close()

	if done != 8 {
		t.Fatalf("expected all tasks to finish before Close returns, got %d", done)
	}
}
