// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package clock is a built-in add-on that provides the current time as a
// resource and, optionally, fires a periodic tick event.
package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/host"
	"github.com/holomush/izou/internal/local"
	"github.com/holomush/izou/pkg/errutil"
)

// Identifiers used by the add-on.
const (
	AddOnID    = "clock"
	ResourceID = "clock.now"
	TickEvent  = "clock.tick"
)

// Option configures an AddOn.
type Option func(*AddOn)

// WithInterval enables the ticker. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(a *AddOn) {
		a.interval = d
	}
}

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(a *AddOn) {
		if now != nil {
			a.now = now
		}
	}
}

// AddOn is the clock add-on. It implements host.AddOn, host.Starter,
// host.Stopper and resource.Builder.
type AddOn struct {
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	caller *local.Caller

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the clock add-on.
func New(opts ...Option) *AddOn {
	a := &AddOn{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID implements identity.Identifiable.
func (a *AddOn) ID() string {
	return AddOnID
}

// Init registers the resource builder and, when ticking, obtains a fire
// capability from the local event manager.
func (a *AddOn) Init(_ context.Context, rt *host.Runtime) error {
	a.logger = rt.Logger().With("addon", AddOnID)

	if err := rt.Resources().Register(a); err != nil {
		return oops.With("addon", AddOnID).Wrapf(err, "register clock builder")
	}
	if a.interval <= 0 {
		return nil
	}

	self, ok := rt.Registry().Identify(a)
	if !ok {
		return oops.With("addon", AddOnID).Errorf("clock add-on is not registered")
	}
	caller, ok := rt.Local().RegisterCaller(self)
	if !ok {
		return oops.With("addon", AddOnID).Errorf("local caller already taken")
	}
	a.caller = caller
	return nil
}

// AnnounceResources implements resource.Builder.
func (a *AddOn) AnnounceResources() []core.Resource {
	return []core.Resource{core.NewRequest(ResourceID)}
}

// AnnounceEvents implements resource.Builder.
func (a *AddOn) AnnounceEvents() []string {
	return []string{TickEvent}
}

// ProvideResources returns the current time for each clock.now request,
// or once when triggered by an event.
func (a *AddOn) ProvideResources(ctx context.Context, requests []core.Resource, event *core.Event) ([]core.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.With("addon", AddOnID).Wrap(err)
	}
	now := a.now()
	if event != nil {
		return []core.Resource{core.NewRequest(ResourceID).Fulfill(now)}, nil
	}

	out := make([]core.Resource, 0, len(requests))
	for _, req := range requests {
		if req.ID != ResourceID {
			continue
		}
		out = append(out, req.Fulfill(now))
	}
	return out, nil
}

// Start launches the ticker when an interval is configured.
func (a *AddOn) Start(ctx context.Context) error {
	if a.caller == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}

	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(tickCtx)
	}()
	return nil
}

// Stop ends the ticker and waits for it to exit.
func (a *AddOn) Stop(context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	return nil
}

func (a *AddOn) run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *AddOn) tick(ctx context.Context) {
	event, err := core.NewEvent(TickEvent, a.caller.ID())
	if err != nil {
		errutil.LogErrorContext(ctx, a.logger, "build tick event", err)
		return
	}
	err = a.caller.Fire(event)
	switch {
	case err == nil:
	case local.IsMultipleEvents(err):
		a.logger.DebugContext(ctx, "skipped tick, local slot busy")
	default:
		errutil.LogWarnContext(ctx, a.logger, "fire tick", err)
	}
}
