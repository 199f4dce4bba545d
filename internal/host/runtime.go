// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package host wires the identification registry, worker pools, resource,
// output, permission and local managers and the event distributor into one
// runtime, and installs add-ons into it.
package host

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/holomush/izou/internal/admission"
	"github.com/holomush/izou/internal/config"
	"github.com/holomush/izou/internal/distributor"
	"github.com/holomush/izou/internal/identity"
	"github.com/holomush/izou/internal/local"
	"github.com/holomush/izou/internal/observability"
	"github.com/holomush/izou/internal/output"
	"github.com/holomush/izou/internal/permission"
	"github.com/holomush/izou/internal/resource"
	"github.com/holomush/izou/internal/worker"
	"github.com/holomush/izou/pkg/errutil"
)

// Pool names used for metrics labels.
const (
	SystemPool = "system"
	AddOnPool  = "addon"
)

// AddOn is an extension module installed into the runtime. How add-ons are
// discovered and loaded is up to the caller.
type AddOn interface {
	identity.Identifiable

	// Init wires the add-on into rt. It runs once, after the add-on's
	// identity has been registered.
	Init(ctx context.Context, rt *Runtime) error
}

// Starter is implemented by add-ons with background work. Start runs when
// the runtime starts, or at install time on a running runtime.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by add-ons that must release resources. Stop runs
// in reverse install order before the runtime loops stop.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMetrics records add-on installs and failures on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(rt *Runtime) {
		rt.metrics = m
	}
}

// WithLogger sets the logger handed to every component. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// Runtime owns every core component.
type Runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	registry    *identity.Registry
	systemPool  *worker.Pool
	addOnPool   *worker.Pool
	resources   *resource.Manager
	output      *output.Manager
	distributor *distributor.Distributor
	local       *local.Manager
	permissions *permission.Manager
	admission   *admission.Controller

	ready atomic.Bool

	mu      sync.Mutex
	addOns  []AddOn
	started bool
}

// New builds a runtime from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}

	rt.registry = identity.NewRegistry()
	rt.systemPool = worker.New(SystemPool, cfg.Pools.System)
	rt.addOnPool = worker.New(AddOnPool, cfg.Pools.AddOn)

	rt.resources = resource.New(rt.addOnPool,
		resource.WithTimeout(cfg.Timeouts.Resources),
		resource.WithLogger(rt.logger))
	rt.output = output.New(rt.addOnPool, output.WithTimeout(cfg.Timeouts.Output))
	rt.distributor = distributor.New(rt.resources, rt.output, rt.addOnPool,
		distributor.WithAdmissionTimeout(cfg.Timeouts.Admission),
		distributor.WithListenerTimeout(cfg.Timeouts.Listeners),
		distributor.WithQueueLimit(cfg.Distributor.QueueLimit),
		distributor.WithConcurrentPool(rt.systemPool),
		distributor.WithLogger(rt.logger))

	localManager, err := local.New(rt.registry, rt.distributor,
		local.WithForwardRetries(cfg.Local.ForwardRetries),
		local.WithLogger(rt.logger))
	if err != nil {
		return nil, oops.With("component", "local").Wrapf(err, "create local event manager")
	}
	rt.local = localManager

	rt.permissions = permission.NewManager()
	for addon, patterns := range cfg.Permissions.Grants {
		if err := rt.permissions.SetGrants(addon, patterns); err != nil {
			return nil, oops.With("addon", addon).Wrapf(err, "load permission grants")
		}
	}

	if len(cfg.Admission.Policies) > 0 {
		controller, err := admission.Compile(cfg.Admission.Policies)
		if err != nil {
			return nil, oops.With("component", "admission").Wrapf(err, "compile admission policies")
		}
		if err := rt.distributor.RegisterController(controller); err != nil {
			return nil, oops.With("component", "admission").Wrapf(err, "register admission controller")
		}
		rt.admission = controller
	}

	return rt, nil
}

// Install registers addon's identity and runs its Init. A failed Init
// unregisters the identity again. Panics in Init are returned as errors.
func (rt *Runtime) Install(ctx context.Context, addon AddOn) error {
	if addon == nil || addon.ID() == "" {
		rt.recordFailure("install")
		return errInvalidAddOn("add-on is nil or has no ID")
	}
	if slices.Contains(rt.AddOns(), addon.ID()) {
		rt.recordFailure("install")
		return oops.Code(CodeDuplicateAddOn).With("addon", addon.ID()).Errorf("add-on already installed")
	}
	if err := rt.registry.Register(addon); err != nil {
		rt.recordFailure("install")
		return oops.With("addon", addon.ID()).Wrapf(err, "register add-on")
	}

	err := errutil.Recover(func() error {
		return addon.Init(ctx, rt)
	}, "addon", addon.ID())
	if err != nil {
		rt.registry.Unregister(addon)
		rt.recordFailure("init")
		return oops.Code(CodeAddOnInit).With("addon", addon.ID()).Wrapf(err, "initialize add-on")
	}

	rt.mu.Lock()
	rt.addOns = append(rt.addOns, addon)
	installed := len(rt.addOns)
	started := rt.started
	rt.mu.Unlock()

	if started {
		rt.startAddOn(ctx, addon)
	}

	if rt.metrics != nil {
		rt.metrics.AddOnsInstalled.Set(float64(installed))
	}
	rt.logger.InfoContext(ctx, "add-on installed", "addon", addon.ID())
	return nil
}

// AddOns returns the IDs of installed add-ons in install order.
func (rt *Runtime) AddOns() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ids := make([]string, 0, len(rt.addOns))
	for _, a := range rt.addOns {
		ids = append(ids, a.ID())
	}
	return ids
}

// Identify returns the self-minted identification of an installed add-on.
// It is false for add-ons that were never installed or failed Init.
func (rt *Runtime) Identify(addon AddOn) (identity.Identification, bool) {
	return rt.registry.Identify(addon)
}

// Start launches the distributor and local manager loops, then starts
// installed add-ons.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		return oops.Code(CodeAlreadyStarted).Errorf("runtime already started")
	}
	if err := rt.distributor.Start(ctx); err != nil {
		rt.mu.Unlock()
		return oops.With("component", "distributor").Wrapf(err, "start runtime")
	}
	if err := rt.local.Start(ctx); err != nil {
		rt.mu.Unlock()
		rt.distributor.Stop()
		return oops.With("component", "local").Wrapf(err, "start runtime")
	}
	rt.started = true
	addOns := slices.Clone(rt.addOns)
	rt.mu.Unlock()

	for _, addon := range addOns {
		rt.startAddOn(ctx, addon)
	}
	rt.ready.Store(true)
	rt.logger.InfoContext(ctx, "runtime started",
		"system_pool", rt.systemPool.Size(),
		"addon_pool", rt.addOnPool.Size(),
		"addons", len(addOns))
	return nil
}

// Stop halts the loops in reverse start order, waits for output delivery
// and closes the pools. Stop on a runtime that never started only closes
// the pools.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.ready.Store(false)

	rt.mu.Lock()
	started := rt.started
	rt.started = false
	addOns := slices.Clone(rt.addOns)
	rt.mu.Unlock()

	if started {
		for _, addon := range slices.Backward(addOns) {
			rt.stopAddOn(ctx, addon)
		}
		rt.local.Stop()
		rt.distributor.Stop()
		rt.output.Wait()
	}

	var errs []error
	if err := rt.addOnPool.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := rt.systemPool.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return oops.With("component", "host").Wrapf(errors.Join(errs...), "close worker pools")
	}
	rt.logger.InfoContext(ctx, "runtime stopped")
	return nil
}

// Ready reports whether the runtime is started. It matches
// observability.ReadinessChecker.
func (rt *Runtime) Ready() bool {
	return rt.ready.Load()
}

// startAddOn failures are logged and counted; the add-on stays installed.
func (rt *Runtime) startAddOn(ctx context.Context, addon AddOn) {
	starter, ok := addon.(Starter)
	if !ok {
		return
	}
	err := errutil.Recover(func() error {
		return starter.Start(ctx)
	}, "addon", addon.ID())
	if err != nil {
		rt.recordFailure("start")
		errutil.LogErrorContext(ctx, rt.logger, "add-on start failed", err, "addon", addon.ID())
	}
}

func (rt *Runtime) stopAddOn(ctx context.Context, addon AddOn) {
	stopper, ok := addon.(Stopper)
	if !ok {
		return
	}
	err := errutil.Recover(func() error {
		return stopper.Stop(ctx)
	}, "addon", addon.ID())
	if err != nil {
		rt.recordFailure("stop")
		errutil.LogErrorContext(ctx, rt.logger, "add-on stop failed", err, "addon", addon.ID())
	}
}

func (rt *Runtime) recordFailure(phase string) {
	if rt.metrics != nil {
		rt.metrics.AddOnFailures.WithLabelValues(phase).Inc()
	}
}

// Config returns the configuration the runtime was built from.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Registry returns the identification registry.
func (rt *Runtime) Registry() *identity.Registry { return rt.registry }

// Resources returns the resource manager.
func (rt *Runtime) Resources() *resource.Manager { return rt.resources }

// Output returns the output manager.
func (rt *Runtime) Output() *output.Manager { return rt.output }

// Distributor returns the event distributor.
func (rt *Runtime) Distributor() *distributor.Distributor { return rt.distributor }

// Local returns the local event manager.
func (rt *Runtime) Local() *local.Manager { return rt.local }

// Permissions returns the permission manager.
func (rt *Runtime) Permissions() *permission.Manager { return rt.permissions }

// Admission returns the policy controller, or nil when no policies are
// configured.
func (rt *Runtime) Admission() *admission.Controller { return rt.admission }
