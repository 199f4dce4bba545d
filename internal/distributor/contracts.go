// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package distributor

import (
	"context"

	"github.com/holomush/izou/internal/core"
)

// Controller decides whether an event may be dispatched. Controllers are
// consulted concurrently and must answer within the admission timeout;
// late answers count as abstentions.
type Controller interface {
	ID() string
	ControlEventDispatcher(ctx context.Context, event *core.Event) bool
}

// Listener is notified about events whose type or descriptors it
// subscribed to. Implementations must return once ctx is cancelled.
type Listener interface {
	ID() string
	EventFired(ctx context.Context, event *core.Event) error
}

// ResourceGenerator attaches resources to an event before listeners run.
type ResourceGenerator interface {
	GenerateForEvent(ctx context.Context, event *core.Event) []core.Resource
}

// Output receives fully processed events. The call must not block on the
// plugins it schedules.
type Output interface {
	PassDataToOutputPlugins(ctx context.Context, event *core.Event)
}

// ControllerFunc adapts a function to a Controller.
type ControllerFunc struct {
	Name string
	Fn   func(ctx context.Context, event *core.Event) bool
}

// ID implements Controller.
func (c ControllerFunc) ID() string { return c.Name }

// ControlEventDispatcher implements Controller.
func (c ControllerFunc) ControlEventDispatcher(ctx context.Context, event *core.Event) bool {
	return c.Fn(ctx, event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc struct {
	Name string
	Fn   func(ctx context.Context, event *core.Event) error
}

// ID implements Listener.
func (l ListenerFunc) ID() string { return l.Name }

// EventFired implements Listener.
func (l ListenerFunc) EventFired(ctx context.Context, event *core.Event) error {
	return l.Fn(ctx, event)
}
