// Package mainthread provides the executors that enforce the threading rule
// of the AR core: scene-graph mutation only happens on the main queue, and
// heavy work runs on a background worker.
package mainthread

import (
	"context"
	"sync"
	"sync/atomic"
)

// Executor runs posted closures. Post returns false when the closure was
// not accepted.
type Executor interface {
	Post(fn func()) bool
}

// Inline runs every closure immediately on the caller's goroutine. It is the
// executor for tests and for hosts that are already on the main thread.
type Inline struct{}

// Post runs fn and returns true.
func (Inline) Post(fn func()) bool {
	fn()
	return true
}

// Queue executes closures in order on a single goroutine started by Run.
type Queue struct {
	name     string
	ch       chan func()
	done     chan struct{}
	stopOnce sync.Once
	executed atomic.Uint64
	rejected atomic.Uint64
}

// NewQueue returns a queue that buffers up to size pending closures.
func NewQueue(name string, size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		name: name,
		ch:   make(chan func(), size),
		done: make(chan struct{}),
	}
}

// NewWorker returns the single background worker used for inference.
func NewWorker(size int) *Queue {
	return NewQueue("worker", size)
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Post enqueues fn, blocking while the buffer is full. It returns false once
// the queue has stopped.
func (q *Queue) Post(fn func()) bool {
	select {
	case <-q.done:
		q.rejected.Add(1)
		return false
	default:
	}
	select {
	case q.ch <- fn:
		return true
	case <-q.done:
		q.rejected.Add(1)
		return false
	}
}

// Run executes posted closures until ctx is cancelled. Closures still queued
// at cancellation are dropped.
func (q *Queue) Run(ctx context.Context) error {
	defer q.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-q.ch:
			fn()
			q.executed.Add(1)
		}
	}
}

func (q *Queue) stop() {
	q.stopOnce.Do(func() { close(q.done) })
}

// Sync posts an empty closure and waits until it has run, so every closure
// posted before the call has completed. It returns false if the queue
// stopped first.
func (q *Queue) Sync(ctx context.Context) bool {
	ran := make(chan struct{})
	if !q.Post(func() { close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-q.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stats returns the number of executed and rejected closures.
func (q *Queue) Stats() (executed, rejected uint64) {
	return q.executed.Load(), q.rejected.Load()
}
