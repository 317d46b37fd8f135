// Package task provides the small concurrency primitives the offline store
// is built on: single-assignment futures used to coalesce duplicate work,
// and a serial executor that confines database access to one goroutine.
package task

import (
	"context"
	"sync"
)

// Future is a single-assignment result that any number of goroutines can
// wait on. It is the mechanism behind operation coalescing: concurrent
// callers requesting the same fetch or key allocation all receive the same
// Future, so exactly one underlying operation runs and every caller observes
// an identical outcome.
//
// A Future resolves at most once. Later Resolve calls are no-ops.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// New creates an unresolved Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve sets the Future's result and wakes all waiters.
// Only the first call has any effect.
func (f *Future[T]) Resolve(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Await blocks until the Future resolves or the context is cancelled.
// Cancellation abandons the wait; the underlying operation still completes
// and its result remains available to other waiters.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryResult returns the result without blocking.
// The boolean reports whether the Future has resolved.
func (f *Future[T]) TryResult() (T, error, bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
