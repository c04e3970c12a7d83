// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"sync"
)

// Outcome is the terminal result of an operation. Present is false for a
// completed-empty result such as a successful put or delete.
type Outcome[T any] struct {
	Value   T
	Present bool
	Err     error
}

// Future is a single-assignment handle to an operation's Outcome.
type Future[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	outcome   Outcome[T]
	callbacks []func(Outcome[T])
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func completedFuture[T any](o Outcome[T]) *Future[T] {
	f := newFuture[T]()
	f.complete(o)
	return f
}

// complete assigns the outcome. Only the first call has effect.
func (f *Future[T]) complete(o Outcome[T]) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.outcome = o
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(o)
	}
	return true
}

// Done is closed once the outcome is assigned.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Outcome returns the outcome and whether it has been assigned yet.
func (f *Future[T]) Outcome() (Outcome[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome, f.completed
}

// Await blocks until the outcome is assigned or ctx is done. Giving up on
// the wait does not cancel the operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.outcome.Value, f.outcome.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnDone registers fn to run with the outcome. fn runs on the goroutine
// that completes the future, or immediately when it is already complete.
func (f *Future[T]) OnDone(fn func(Outcome[T])) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	o := f.outcome
	f.mu.Unlock()
	fn(o)
}
