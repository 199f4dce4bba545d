// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package logout is a built-in add-on that renders every dispatched event
// to the structured log.
package logout

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/host"
)

// AddOnID identifies the add-on and its output plugin.
const AddOnID = "logout"

// AddOn is the log output add-on. It implements host.AddOn and
// output.Plugin.
type AddOn struct {
	interests []string
	logger    *slog.Logger
}

// New creates the add-on. interests restricts the events rendered; none
// means every event.
func New(interests ...string) *AddOn {
	return &AddOn{
		interests: interests,
		logger:    slog.Default(),
	}
}

// ID implements identity.Identifiable.
func (a *AddOn) ID() string {
	return AddOnID
}

// Init adds the add-on as an output plugin.
func (a *AddOn) Init(_ context.Context, rt *host.Runtime) error {
	a.logger = rt.Logger().With("plugin", AddOnID)
	rt.Output().AddPlugin(a, a.interests...)
	return nil
}

// RenderOutput logs the event and the resources attached to it.
func (a *AddOn) RenderOutput(ctx context.Context, event *core.Event) error {
	if err := ctx.Err(); err != nil {
		return oops.With("plugin", AddOnID).Wrap(err)
	}

	resources := event.Resources()
	rendered := make([]string, 0, len(resources))
	for _, r := range resources {
		rendered = append(rendered, r.String())
	}

	a.logger.InfoContext(ctx, "event dispatched",
		"event_id", event.ID().String(),
		"event_type", event.Type(),
		"source", event.Source().ID(),
		"descriptors", event.Descriptors(),
		"resources", rendered,
	)
	return nil
}
