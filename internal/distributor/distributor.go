// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package distributor implements the event pipeline: a single dispatch loop
// that runs admission control, resource generation, listeners and output
// for one queued event at a time.
package distributor

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/worker"
	"github.com/holomush/izou/pkg/errutil"
)

var tracer = otel.Tracer("izou/distributor")

// Default collective deadlines.
const (
	DefaultAdmissionTimeout = time.Second
	DefaultListenerTimeout  = time.Second
)

// Pipeline stages used in logs and span events.
const (
	StageValidating = "validating"
	StageAdmitting  = "admitting"
	StageResources  = "resource_generation"
	StageListeners  = "listener_notification"
	StageOutput     = "output_dispatch"
	StageFinished   = "finished_notification"
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Option configures a Distributor.
type Option func(*Distributor)

// WithAdmissionTimeout sets the collective deadline for controllers.
func WithAdmissionTimeout(d time.Duration) Option {
	return func(dist *Distributor) {
		if d > 0 {
			dist.admissionTimeout = d
		}
	}
}

// WithListenerTimeout sets the collective deadline for each listener stage.
func WithListenerTimeout(d time.Duration) Option {
	return func(dist *Distributor) {
		if d > 0 {
			dist.listenerTimeout = d
		}
	}
}

// WithQueueLimit bounds the queue. Zero, the default, means unbounded.
func WithQueueLimit(n int) Option {
	return func(dist *Distributor) {
		if n > 0 {
			dist.queue = newQueue(n)
		}
	}
}

// WithConcurrentPool sets the pool used by FireConcurrently. Without it
// concurrently fired events run on their own goroutine.
func WithConcurrentPool(p *worker.Pool) Option {
	return func(dist *Distributor) {
		dist.concurrentPool = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(dist *Distributor) {
		if logger != nil {
			dist.logger = logger
		}
	}
}

// Distributor owns the event queue and the dispatch loop.
type Distributor struct {
	resources ResourceGenerator
	output    Output
	pool      *worker.Pool

	concurrentPool   *worker.Pool
	admissionTimeout time.Duration
	listenerTimeout  time.Duration
	logger           *slog.Logger

	queue *queue

	controllers atomic.Pointer[[]Controller]
	listeners   *subscriptions
	finished    *subscriptions

	mu         sync.Mutex
	publishers map[string]*Publisher
	state      state
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Distributor. Controllers and listeners run on pool.
// resources and out may be nil, which skips the corresponding stage.
func New(resources ResourceGenerator, out Output, pool *worker.Pool, opts ...Option) *Distributor {
	d := &Distributor{
		resources:        resources,
		output:           out,
		pool:             pool,
		admissionTimeout: DefaultAdmissionTimeout,
		listenerTimeout:  DefaultListenerTimeout,
		logger:           slog.Default(),
		queue:            newQueue(0),
		listeners:        newSubscriptions(),
		finished:         newSubscriptions(),
		publishers:       make(map[string]*Publisher),
	}
	d.controllers.Store(&[]Controller{})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterController adds an admission controller. A controller whose ID
// is already registered is ignored.
func (d *Distributor) RegisterController(c Controller) error {
	if c == nil || c.ID() == "" {
		return errInvalidRegistration("controller", "controller is nil or has no ID")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	current := *d.controllers.Load()
	if slices.ContainsFunc(current, func(x Controller) bool { return x.ID() == c.ID() }) {
		return nil
	}
	next := append(slices.Clone(current), c)
	d.controllers.Store(&next)
	return nil
}

// UnregisterController removes the controller with c's ID.
func (d *Distributor) UnregisterController(c Controller) {
	if c == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(*d.controllers.Load()), func(x Controller) bool {
		return x.ID() == c.ID()
	})
	d.controllers.Store(&next)
}

// RegisterListener subscribes l to events whose type or descriptors are in
// ids. It runs after resource generation and before output.
func (d *Distributor) RegisterListener(ids []string, l Listener) error {
	if err := validateListener(ids, l); err != nil {
		return err
	}
	d.listeners.add(ids, l)
	return nil
}

// UnregisterListener removes l from ids, or from all ids when none are given.
func (d *Distributor) UnregisterListener(ids []string, l Listener) {
	if l != nil {
		d.listeners.remove(ids, l)
	}
}

// RegisterFinishedListener subscribes l to the point after output dispatch.
func (d *Distributor) RegisterFinishedListener(ids []string, l Listener) error {
	if err := validateListener(ids, l); err != nil {
		return err
	}
	d.finished.add(ids, l)
	return nil
}

// UnregisterFinishedListener removes a finished listener.
func (d *Distributor) UnregisterFinishedListener(ids []string, l Listener) {
	if l != nil {
		d.finished.remove(ids, l)
	}
}

func validateListener(ids []string, l Listener) error {
	if l == nil || l.ID() == "" {
		return errInvalidRegistration("listener", "listener is nil or has no ID")
	}
	if len(ids) == 0 {
		return errInvalidRegistration("listener", "no event ids given")
	}
	return nil
}

// QueueLen returns the number of events waiting for the dispatch loop.
func (d *Distributor) QueueLen() int {
	return d.queue.len()
}

// Start launches the dispatch loop. The loop runs until Stop is called or
// ctx is cancelled.
func (d *Distributor) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateRunning:
		return errAlreadyRunning()
	case stateStopped:
		return ErrStopped()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.state = stateRunning

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(loopCtx)
	}()
	d.logger.Info("event distributor started",
		"admission_timeout", d.admissionTimeout.String(),
		"listener_timeout", d.listenerTimeout.String())
	return nil
}

// Stop ends the dispatch loop, waits for the event in progress and drops
// events still queued. Stop is idempotent.
func (d *Distributor) Stop() {
	d.mu.Lock()
	if d.state == stateStopped {
		d.mu.Unlock()
		return
	}
	d.state = stateStopped
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	if dropped := d.queue.drain(); dropped > 0 {
		d.logger.Warn("dropped queued events on stop", "count", dropped)
	}
	d.logger.Info("event distributor stopped")
}

func (d *Distributor) enqueue(event *core.Event) error {
	if event == nil {
		return errInvalidRegistration("event", "event is nil")
	}
	d.mu.Lock()
	stopped := d.state == stateStopped
	d.mu.Unlock()
	if stopped {
		return ErrStopped()
	}
	if !d.queue.push(event) {
		return ErrQueueFull(d.queue.limit)
	}
	return nil
}

func (d *Distributor) loop(ctx context.Context) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			event, ok := d.queue.pop()
			if !ok {
				break
			}
			d.process(ctx, event, false)
		}

		select {
		case <-ctx.Done():
			return
		case <-d.queue.signal:
		}
	}
}

// FireConcurrently processes event outside the queue. It gives no ordering
// guarantee relative to queued events or other concurrent events and is
// meant for time-critical events with few listeners.
func (d *Distributor) FireConcurrently(ctx context.Context, event *core.Event) error {
	if event == nil {
		return errInvalidRegistration("event", "event is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateStopped {
		return ErrStopped()
	}

	if d.concurrentPool != nil {
		worker.Go(ctx, d.concurrentPool, "fire-concurrently", func(ctx context.Context) (struct{}, error) {
			d.process(ctx, event, true)
			return struct{}{}, nil
		})
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.process(ctx, event, true)
	}()
	return nil
}

// process runs the pipeline for one event.
func (d *Distributor) process(ctx context.Context, event *core.Event, concurrent bool) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "distributor.dispatch",
		trace.WithAttributes(
			attribute.String("event.id", event.ID().String()),
			attribute.String("event.type", event.Type()),
			attribute.String("event.source", event.Source().String()),
			attribute.Bool("event.concurrent", concurrent),
		))
	defer span.End()

	logger := d.logger.With(
		"event_id", event.ID().String(),
		"event_type", event.Type(),
		"source", event.Source().String())

	if !event.Source().IsSelfMinted() {
		err := ErrInvalidEventSource(event)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		errutil.LogWarnContext(ctx, logger, "dropped event with invalid source", err, "stage", StageValidating)
		recordOutcome(OutcomeRejected, start)
		return
	}

	span.AddEvent(StageAdmitting)
	if !d.admit(ctx, logger, event) {
		if d.abandoned(ctx, logger, span, StageAdmitting, start) {
			return
		}
		span.SetAttributes(attribute.Bool("event.vetoed", true))
		logger.InfoContext(ctx, "event vetoed by admission control", "stage", StageAdmitting)
		recordOutcome(OutcomeVetoed, start)
		return
	}

	if d.abandoned(ctx, logger, span, StageResources, start) {
		return
	}
	if d.resources != nil {
		span.AddEvent(StageResources)
		resources := d.resources.GenerateForEvent(ctx, event)
		event.AddResources(resources...)
		span.SetAttributes(attribute.Int("event.resources", len(resources)))
	}

	if d.abandoned(ctx, logger, span, StageListeners, start) {
		return
	}
	span.AddEvent(StageListeners)
	d.notify(ctx, logger, event, d.listeners, StageListeners)

	if d.abandoned(ctx, logger, span, StageOutput, start) {
		return
	}
	if d.output != nil {
		span.AddEvent(StageOutput)
		d.output.PassDataToOutputPlugins(ctx, event)
	}

	span.AddEvent(StageFinished)
	d.notify(ctx, logger, event, d.finished, StageFinished)

	logger.DebugContext(ctx, "event dispatched", "duration", time.Since(start).String())
	recordOutcome(OutcomeDispatched, start)
}

// admit asks every controller concurrently. Only an in-time false vetoes;
// controllers that time out, fail or panic abstain.
func (d *Distributor) admit(ctx context.Context, logger *slog.Logger, event *core.Event) bool {
	controllers := *d.controllers.Load()
	if len(controllers) == 0 {
		return true
	}

	futures := make([]*worker.Future[bool], 0, len(controllers))
	for _, c := range controllers {
		futures = append(futures, worker.Go(ctx, d.pool, c.ID(), func(ctx context.Context) (bool, error) {
			return c.ControlEventDispatcher(ctx, event), nil
		}))
	}

	admitted := true
	for _, outcome := range worker.AwaitAll(ctx, d.admissionTimeout, futures) {
		switch {
		case ctx.Err() != nil:
		case outcome.TimedOut:
			AdmissionTimeouts.Inc()
			logger.WarnContext(ctx, "controller missed admission deadline",
				"stage", StageAdmitting,
				"controller", outcome.Name,
				"timeout", d.admissionTimeout.String())
		case outcome.Err != nil:
			errutil.LogErrorContext(ctx, logger, "controller failed", outcome.Err,
				"stage", StageAdmitting,
				"controller", outcome.Name)
		case !outcome.Value:
			logger.DebugContext(ctx, "controller vetoed event",
				"stage", StageAdmitting,
				"controller", outcome.Name)
			admitted = false
		}
	}
	if ctx.Err() != nil {
		return false
	}
	return admitted
}

// abandoned reports whether ctx ended before stage. The event is dropped
// rather than carried into later stages with undecided results.
func (d *Distributor) abandoned(ctx context.Context, logger *slog.Logger, span trace.Span, stage string, start time.Time) bool {
	if ctx.Err() == nil {
		return false
	}
	span.SetAttributes(attribute.Bool("event.abandoned", true))
	logger.WarnContext(ctx, "dropped event, dispatch context ended",
		"stage", stage,
		"error", ctx.Err())
	recordOutcome(OutcomeAbandoned, start)
	return true
}

// notify runs the listeners subscribed to the event's information set
// concurrently under one deadline.
func (d *Distributor) notify(ctx context.Context, logger *slog.Logger, event *core.Event, subs *subscriptions, stage string) {
	listeners := subs.matching(event.Information())
	if len(listeners) == 0 {
		return
	}

	futures := make([]*worker.Future[struct{}], 0, len(listeners))
	for _, l := range listeners {
		futures = append(futures, worker.Go(ctx, d.pool, l.ID(), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, l.EventFired(ctx, event)
		}))
	}

	for _, outcome := range worker.AwaitAll(ctx, d.listenerTimeout, futures) {
		switch {
		case outcome.TimedOut:
			ListenerTimeouts.Inc()
			logger.WarnContext(ctx, "listener missed deadline",
				"stage", stage,
				"listener", outcome.Name,
				"timeout", d.listenerTimeout.String())
		case outcome.Err != nil:
			errutil.LogErrorContext(ctx, logger, "listener failed", outcome.Err,
				"stage", stage,
				"listener", outcome.Name)
		}
	}
}
