// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package local

import (
	"github.com/samber/oops"

	"github.com/holomush/izou/pkg/errutil"
)

// Error codes for the local event manager.
const (
	CodeMultipleEvents = "MULTIPLE_EVENTS"
	CodeCallerRevoked  = "CALLER_REVOKED"
	CodeAlreadyRunning = "ALREADY_RUNNING"
	CodeInvalidEvent   = "INVALID_EVENT"
)

// ErrMultipleEvents creates the error returned while the slot is occupied.
// It is expected control flow: the caller should retry after the slot drains.
func ErrMultipleEvents(caller string) error {
	return oops.Code(CodeMultipleEvents).
		With("caller", caller).
		Errorf("an event is already waiting to be forwarded")
}

// IsMultipleEvents reports whether err signals an occupied slot.
func IsMultipleEvents(err error) bool {
	return errutil.HasCode(err, CodeMultipleEvents)
}

// ErrCallerRevoked creates an error for a fire through a revoked caller.
func ErrCallerRevoked(caller string) error {
	return oops.Code(CodeCallerRevoked).
		With("caller", caller).
		Errorf("caller revoked: %s", caller)
}
