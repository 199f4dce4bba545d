// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package worker

import (
	"context"
	"sync"
	"time"
)

// Future is the pending result of a task submitted with Go.
type Future[T any] struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	value T
	err   error
}

func newFuture[T any](name string, cancel context.CancelFunc) *Future[T] {
	return &Future[T]{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Name returns the task name.
func (f *Future[T]) Name() string {
	return f.name
}

// Done is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel cancels the task context. Cancellation is cooperative: the task
// keeps running until it observes its context.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Result blocks until the task finishes and returns its result.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Wait returns the result, or the context error if ctx ends first.
// The task is not cancelled when ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Outcome is the result of one future under a collective deadline.
type Outcome[T any] struct {
	Name     string
	Value    T
	Err      error
	TimedOut bool
}

// AwaitAll waits for all futures under a single wall-clock budget. Futures
// still running when the budget is spent (or ctx ends) are cancelled and
// reported with TimedOut set; whatever they return later is discarded.
// Outcomes are returned in the order of futures.
func AwaitAll[T any](ctx context.Context, timeout time.Duration, futures []*Future[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(futures))
	if len(futures) == 0 {
		return outcomes
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for i, f := range futures {
		outcomes[i].Name = f.name

		select {
		case <-f.done:
			outcomes[i].Value, outcomes[i].Err = f.value, f.err
			continue
		default:
		}

		select {
		case <-f.done:
			outcomes[i].Value, outcomes[i].Err = f.value, f.err
		case <-waitCtx.Done():
			outcomes[i].TimedOut = true
			f.Cancel()
		}
	}
	return outcomes
}
