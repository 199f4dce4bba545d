// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package worker

import "github.com/samber/oops"

// Error codes for worker failures.
const (
	CodePoolClosed   = "POOL_CLOSED"
	CodeTaskPanic    = "TASK_PANIC"
	CodeTaskCanceled = "TASK_CANCELED"
)

// ErrPoolClosed creates an error for a submission to a closed pool.
func ErrPoolClosed(pool, task string) error {
	return oops.Code(CodePoolClosed).
		With("pool", pool).
		With("task", task).
		Errorf("worker pool %q is closed", pool)
}

// ErrTaskCanceled creates an error for a task that never got a slot.
func ErrTaskCanceled(pool, task string, cause error) error {
	return oops.Code(CodeTaskCanceled).
		With("pool", pool).
		With("task", task).
		Wrapf(cause, "task canceled before start")
}
