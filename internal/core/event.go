// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package core contains the event and resource types that flow through the
// add-on pipeline.
package core

import (
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/izou/internal/identity"
)

// CodeInvalidEvent is returned when an event cannot be constructed.
const CodeInvalidEvent = "INVALID_EVENT"

// Event is the envelope passed from a publisher through admission control,
// resource generation and listeners to the output stage.
//
// Everything except the attached resources is fixed at construction.
// Resources are appended by the pipeline and may be read concurrently.
type Event struct {
	id          ulid.ULID
	eventType   string
	source      identity.Identification
	descriptors []string
	timestamp   time.Time

	mu        sync.RWMutex
	resources []Resource
}

// NewEvent creates an event of the given type. Descriptors are secondary
// routing tags; empty descriptors are dropped.
func NewEvent(eventType string, source identity.Identification, descriptors ...string) (*Event, error) {
	if eventType == "" {
		return nil, oops.Code(CodeInvalidEvent).
			With("source", source.ID()).
			Errorf("event type is required")
	}

	descs := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d != "" {
			descs = append(descs, d)
		}
	}

	now := time.Now()
	return &Event{
		id:          newEventID(now),
		eventType:   eventType,
		source:      source,
		descriptors: descs,
		timestamp:   now,
	}, nil
}

// ID returns the unique event ID.
func (e *Event) ID() ulid.ULID {
	return e.id
}

// Type returns the event type.
func (e *Event) Type() string {
	return e.eventType
}

// Source returns the identification of the publisher.
func (e *Event) Source() identity.Identification {
	return e.source
}

// Timestamp returns the creation time.
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

// Descriptors returns a copy of the descriptor tags.
func (e *Event) Descriptors() []string {
	return slices.Clone(e.descriptors)
}

// HasDescriptor reports whether d is one of the event's descriptors.
func (e *Event) HasDescriptor(d string) bool {
	return slices.Contains(e.descriptors, d)
}

// Information returns the strings used for routing: the type followed by
// the descriptors, without duplicates.
func (e *Event) Information() []string {
	info := make([]string, 0, len(e.descriptors)+1)
	info = append(info, e.eventType)
	for _, d := range e.descriptors {
		if !slices.Contains(info, d) {
			info = append(info, d)
		}
	}
	return info
}

// AddResources appends resources to the event.
func (e *Event) AddResources(resources ...Resource) {
	if len(resources) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resources = append(e.resources, resources...)
}

// Resources returns a copy of the attached resources.
func (e *Event) Resources() []Resource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.resources)
}

// ResourcesByID returns the attached resources with the given resource ID.
func (e *Event) ResourcesByID(id string) []Resource {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched []Resource
	for _, r := range e.resources {
		if r.ID == id {
			matched = append(matched, r)
		}
	}
	return matched
}
