// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package worker provides the bounded worker pools that run add-on code,
// together with typed futures and collective deadlines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"

	"github.com/holomush/izou/pkg/errutil"
)

// Pool runs tasks on goroutines while bounding how many execute at once.
// Submitting never blocks: a task waits for a slot under its own context, so
// a saturated pool surfaces as task timeouts rather than a stalled caller.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a pool that runs at most size tasks concurrently.
// A size below one is treated as one.
func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name: name,
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting tasks and waits for in-flight tasks to finish or
// for ctx to end. Close is idempotent.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.With("pool", p.name).Wrapf(ctx.Err(), "wait for in-flight tasks")
	}
}

// admit reserves a place for a task; false once the pool is closed.
func (p *Pool) admit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// Go submits fn to the pool and returns its future. The task context is
// derived from ctx and is cancelled by Future.Cancel or when the result is
// no longer awaited. A panic in fn is reported as a CodeTaskPanic error.
func Go[T any](ctx context.Context, p *Pool, name string, fn func(context.Context) (T, error)) *Future[T] {
	taskCtx, cancel := context.WithCancel(ctx)
	f := newFuture[T](name, cancel)

	if !p.admit() {
		TasksTotal.WithLabelValues(p.name, OutcomeRejected).Inc()
		cancel()
		var zero T
		f.complete(zero, ErrPoolClosed(p.name, name))
		return f
	}

	TasksInFlight.WithLabelValues(p.name).Inc()
	go func() {
		defer p.wg.Done()
		defer TasksInFlight.WithLabelValues(p.name).Dec()
		defer cancel()

		value, err := runTask(taskCtx, p, name, fn)
		TasksTotal.WithLabelValues(p.name, outcomeOf(err)).Inc()
		f.complete(value, err)
	}()
	return f
}

func runTask[T any](ctx context.Context, p *Pool, name string, fn func(context.Context) (T, error)) (T, error) {
	var (
		value T
		fnErr error
	)
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return value, ErrTaskCanceled(p.name, name, err)
	}
	defer p.sem.Release(1)

	err := oops.Code(CodeTaskPanic).
		With("pool", p.name).
		With("task", name).
		Recover(func() {
			value, fnErr = fn(ctx)
		})
	if err != nil {
		slog.Error("worker task panicked",
			"pool", p.name,
			"task", name,
			"error", err)
		return value, err
	}
	return value, fnErr
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errutil.HasCode(err, CodeTaskPanic):
		return OutcomePanic
	case errutil.HasCode(err, CodeTaskCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
