// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package distributor

import (
	"github.com/samber/oops"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/identity"
)

// Error codes for distributor operations.
const (
	CodeAlreadyRegistered     = "ALREADY_REGISTERED"
	CodeInvalidIdentification = "INVALID_IDENTIFICATION"
	CodeInvalidRegistration   = "INVALID_REGISTRATION"
	CodePublisherRevoked      = "PUBLISHER_REVOKED"
	CodeQueueFull             = "QUEUE_FULL"
	CodeDistributorStopped    = "DISTRIBUTOR_STOPPED"
	CodeAlreadyRunning        = "ALREADY_RUNNING"
	CodeInvalidEventSource    = "INVALID_EVENT_SOURCE"
)

// ErrAlreadyRegistered creates an error for a second publisher request.
func ErrAlreadyRegistered(id string) error {
	return oops.Code(CodeAlreadyRegistered).
		With("publisher", id).
		Errorf("publisher already registered: %s", id)
}

// ErrPublisherRevoked creates an error for a publish through a revoked
// publisher.
func ErrPublisherRevoked(id string) error {
	return oops.Code(CodePublisherRevoked).
		With("publisher", id).
		Errorf("publisher revoked: %s", id)
}

// ErrQueueFull creates an error for a publish that exceeds the queue limit.
func ErrQueueFull(limit int) error {
	return oops.Code(CodeQueueFull).
		With("limit", limit).
		Errorf("event queue full")
}

// ErrStopped creates an error for use of a stopped distributor.
func ErrStopped() error {
	return oops.Code(CodeDistributorStopped).Errorf("event distributor stopped")
}

// ErrInvalidEventSource creates an error for an event whose source was not
// minted by the publishing entity itself.
func ErrInvalidEventSource(event *core.Event) error {
	return oops.Code(CodeInvalidEventSource).
		With("event_id", event.ID().String()).
		With("event_type", event.Type()).
		With("source", event.Source().String()).
		Errorf("event source is not self-minted")
}

func errInvalidIdentification(id identity.Identification) error {
	return oops.Code(CodeInvalidIdentification).
		With("publisher", id.String()).
		Errorf("publisher identification is empty")
}

func errInvalidRegistration(kind, reason string) error {
	return oops.Code(CodeInvalidRegistration).
		With("kind", kind).
		Errorf("invalid %s registration: %s", kind, reason)
}

func errAlreadyRunning() error {
	return oops.Code(CodeAlreadyRunning).Errorf("event distributor already running")
}
