// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/izou/internal/worker"
	"github.com/holomush/izou/pkg/errutil"
)

func TestGo_ReturnsValue(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := worker.New("test-value", 2)
	f := worker.Go(context.Background(), pool, "answer", func(context.Context) (int, error) {
		return 42, nil
	})

	value, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, "answer", f.Name())
	require.NoError(t, pool.Close(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(worker.TasksTotal.WithLabelValues("test-value", worker.OutcomeSuccess)))
}

func TestGo_ReturnsError(t *testing.T) {
	pool := worker.New("test-error", 1)
	boom := errors.New("boom")

	_, err := worker.Go(context.Background(), pool, "fail", func(context.Context) (string, error) {
		return "", boom
	}).Result()

	assert.ErrorIs(t, err, boom)
	require.NoError(t, pool.Close(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(worker.TasksTotal.WithLabelValues("test-error", worker.OutcomeError)))
}

func TestGo_PanicIsIsolated(t *testing.T) {
	pool := worker.New("test-panic", 1)

	_, err := worker.Go(context.Background(), pool, "explode", func(context.Context) (int, error) {
		panic("add-on bug")
	}).Result()

	errutil.AssertErrorCode(t, err, worker.CodeTaskPanic)
	errutil.AssertErrorContext(t, err, "task", "explode")

	// The pool keeps working after a panic.
	value, err := worker.Go(context.Background(), pool, "after", func(context.Context) (int, error) {
		return 7, nil
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, 7, value)
	require.NoError(t, pool.Close(context.Background()))
}

func TestGo_ClosedPoolRejects(t *testing.T) {
	pool := worker.New("test-closed", 1)
	require.NoError(t, pool.Close(context.Background()))

	var called atomic.Bool
	_, err := worker.Go(context.Background(), pool, "late", func(context.Context) (int, error) {
		called.Store(true)
		return 0, nil
	}).Result()

	errutil.AssertErrorCode(t, err, worker.CodePoolClosed)
	assert.False(t, called.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := worker.New("test-bound", 2)
	var running, peak atomic.Int32
	release := make(chan struct{})

	futures := make([]*worker.Future[struct{}], 0, 6)
	for i := 0; i < 6; i++ {
		futures = append(futures, worker.Go(context.Background(), pool, "slot", func(context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return struct{}{}, nil
		}))
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	for _, f := range futures {
		_, err := f.Result()
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), peak.Load())
	require.NoError(t, pool.Close(context.Background()))
}

func TestPool_SaturatedTaskTimesOut(t *testing.T) {
	pool := worker.New("test-saturated", 1)
	release := make(chan struct{})
	blocker := worker.Go(context.Background(), pool, "blocker", func(context.Context) (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := worker.Go(ctx, pool, "starved", func(context.Context) (int, error) {
		return 1, nil
	}).Result()

	errutil.AssertErrorCode(t, err, worker.CodeTaskCanceled)
	close(release)
	_, err = blocker.Result()
	require.NoError(t, err)
	require.NoError(t, pool.Close(context.Background()))
}

func TestPool_CloseWaitsForTasks(t *testing.T) {
	pool := worker.New("test-close-wait", 1)
	var finished atomic.Bool
	worker.Go(context.Background(), pool, "slow", func(context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return 0, nil
	})

	require.NoError(t, pool.Close(context.Background()))
	assert.True(t, finished.Load())
}

func TestPool_CloseHonoursContext(t *testing.T) {
	pool := worker.New("test-close-ctx", 1)
	release := make(chan struct{})
	f := worker.Go(context.Background(), pool, "stuck", func(context.Context) (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	_, _ = f.Result()
}

func TestNew_MinimumSize(t *testing.T) {
	pool := worker.New("tiny", 0)
	assert.Equal(t, 1, pool.Size())
	assert.Equal(t, "tiny", pool.Name())
}
