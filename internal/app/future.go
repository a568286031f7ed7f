package app

import (
	"context"
	"sync"
)

// Future is the pending result of a submitted task.
type Future struct {
	id   string
	done chan struct{}

	mu        sync.Mutex
	cancelled bool
	cancel    context.CancelFunc

	value any
	err   error
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the task identifier assigned at submission.
func (f *Future) ID() string {
	return f.id
}

// Done is closed once the task has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the task and returns its result. It returns ctx's error if
// ctx ends first; the task keeps running.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops a task that has not started and cancels the context of one
// that is running. It reports whether the task had not yet completed.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		return false
	default:
	}

	f.cancelled = true
	if f.cancel != nil {
		f.cancel()
	}

	return true
}

// start records that a worker picked the task up. It returns false when
// the task was cancelled while queued.
func (f *Future) start(cancel context.CancelFunc) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelled {
		return false
	}

	f.cancel = cancel

	return true
}

func (f *Future) complete(value any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.value = value
	f.err = err
	f.cancel = nil
	close(f.done)
}
