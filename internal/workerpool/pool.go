// Package workerpool bounds the concurrency of CPU-bound work so the
// request-accepting path is never occupied by inference latency. Work is
// handed over through an explicit task/channel pair; cancellation drops the
// task rather than killing a worker.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Do when a bounded queue cannot accept more
// work. With an unbounded pool callers block until a worker is free.
var ErrQueueFull = errors.New("worker pool queue is full")

type task struct {
	ctx  context.Context
	fn   func()
	done chan struct{}
	ran  bool
}

// Pool runs submitted functions on a fixed set of worker goroutines.
type Pool struct {
	tasks     chan *task
	bounded   bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a pool with the given number of workers. queueSize 0 gives an
// unbounded queue: submitters block until a worker picks their task up.
// queueSize > 0 bounds pending work and makes Do fail fast with
// ErrQueueFull on overflow.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks:   make(chan *task, queueSize),
		bounded: queueSize > 0,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		// A task whose request was cancelled while queued is discarded
		// without side effects.
		if t.ctx.Err() == nil {
			t.fn()
			t.ran = true
		}
		close(t.done)
	}
}

// Do runs fn on a pool worker and blocks until it has finished. It returns
// the context error when the task was dropped before running, and
// ErrQueueFull when a bounded queue overflows. fn itself should honor ctx
// for cooperative cancellation of long work.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	t := &task{ctx: ctx, fn: fn, done: make(chan struct{})}

	if p.bounded {
		select {
		case p.tasks <- t:
		default:
			return ErrQueueFull
		}
	} else {
		select {
		case p.tasks <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	<-t.done
	if !t.ran {
		return ctx.Err()
	}
	return nil
}

// Close stops accepting work and waits for in-flight tasks to finish. Do
// must not be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
