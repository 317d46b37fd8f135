package task

import (
	"context"
	"fmt"
	"sync"
)

// Executor runs submitted functions one at a time on a single dedicated
// goroutine. The store uses it to confine its SQLite handle: the handle's
// transaction state is not safe to share across goroutines, and funneling
// every statement through one goroutine guarantees that multi-step
// transactions (begin, mutate, commit) never interleave.
//
// Jobs execute in submission order. A job must never call back into the
// same Executor; doing so deadlocks, since the lone worker would be waiting
// on itself. Public entry points that block on Do are therefore documented
// as unsafe to call from within a job.
type Executor struct {
	// mu is held for reading while submitting and for writing while
	// closing, so a submit can never race the channel close.
	mu     sync.RWMutex
	jobs   chan func()
	closed bool
	wg     sync.WaitGroup
}

// NewExecutor starts the worker goroutine and returns the Executor.
func NewExecutor() *Executor {
	e := &Executor{jobs: make(chan func())}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for job := range e.jobs {
			job()
		}
	}()
	return e
}

// Do submits fn and blocks until it has run or the context is cancelled.
// Cancellation before the job starts abandons it entirely; once the job is
// running it always runs to completion.
func (e *Executor) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return fmt.Errorf("executor is closed")
	}
	select {
	case e.jobs <- wrapped:
		e.mu.RUnlock()
	case <-ctx.Done():
		e.mu.RUnlock()
		return ctx.Err()
	}

	// The job is queued and will run; wait for it so callers observe
	// completed state when Do returns.
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued work to drain.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()
	e.wg.Wait()
}
