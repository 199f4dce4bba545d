// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package local provides the single-slot front door through which local
// sources fire events into the distributor.
package local

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/distributor"
	"github.com/holomush/izou/internal/identity"
	"github.com/holomush/izou/pkg/errutil"
)

// ManagerID is the identity the manager registers for itself.
const ManagerID = "izou.local-event-manager"

// DefaultForwardRetries is how often a QUEUE_FULL rejection is retried.
const DefaultForwardRetries = 5

// PublisherRegistrar issues publish capabilities. *distributor.Distributor
// implements it.
type PublisherRegistrar interface {
	RegisterPublisher(id identity.Identification) (*distributor.Publisher, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithForwardRetries sets how often a full distributor queue is retried
// before the event is dropped.
func WithForwardRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.retries = uint64(n)
		}
	}
}

// WithRetryBase sets the first backoff interval for forward retries.
func WithRetryBase(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryBase = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager holds one shared slot. Only one event may wait in it at a time;
// the background loop moves it on to the distributor.
type Manager struct {
	self      identity.Identification
	publisher *distributor.Publisher
	slot      chan *core.Event

	retries   uint64
	retryBase time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	callers map[string]*Caller
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates the manager, registers it in registry and obtains its
// distributor publisher.
func New(registry *identity.Registry, d PublisherRegistrar, opts ...Option) (*Manager, error) {
	m := &Manager{
		slot:      make(chan *core.Event, 1),
		retries:   DefaultForwardRetries,
		retryBase: 10 * time.Millisecond,
		logger:    slog.Default(),
		callers:   make(map[string]*Caller),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := registry.Register(m); err != nil {
		return nil, oops.With("component", ManagerID).Wrapf(err, "register local event manager")
	}
	self, ok := registry.Identify(m)
	if !ok {
		return nil, oops.With("component", ManagerID).Errorf("local event manager not identifiable")
	}
	m.self = self

	publisher, err := d.RegisterPublisher(self)
	if err != nil {
		return nil, oops.With("component", ManagerID).Wrapf(err, "register publisher")
	}
	m.publisher = publisher
	return m, nil
}

// ID implements identity.Identifiable.
func (m *Manager) ID() string {
	return ManagerID
}

// Identification returns the manager's self-minted identification.
func (m *Manager) Identification() identity.Identification {
	return m.self
}

// RegisterCaller issues a fire capability for id. It returns false when id
// is empty or already holds one.
func (m *Manager) RegisterCaller(id identity.Identification) (*Caller, bool) {
	if id.IsZero() {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.callers[id.ID()]; ok {
		return nil, false
	}
	c := &Caller{id: id, m: m}
	m.callers[id.ID()] = c
	return c, true
}

// UnregisterCaller revokes the capability held by id.
func (m *Manager) UnregisterCaller(id identity.Identification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.callers[id.ID()]; ok {
		c.revoked.Store(true)
		delete(m.callers, id.ID())
	}
}

// Start launches the forwarding loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return oops.Code(CodeAlreadyRunning).Errorf("local event manager already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(loopCtx)
	}()
	return nil
}

// Stop ends the forwarding loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.slot:
			m.forward(ctx, event)
		}
	}
}

func (m *Manager) forward(ctx context.Context, event *core.Event) {
	if !event.Source().IsSelfMinted() {
		errutil.LogWarnContext(ctx, m.logger, "dropped local event with invalid source",
			distributor.ErrInvalidEventSource(event))
		return
	}

	backoff := retry.WithMaxRetries(m.retries, retry.NewExponential(m.retryBase))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		err := m.publisher.Publish(event)
		if errutil.HasCode(err, distributor.CodeQueueFull) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger, "failed to forward local event", err,
			"event_id", event.ID().String(),
			"event_type", event.Type(),
			"source", event.Source().String())
	}
}

// Caller is the capability to fire events into the shared slot.
type Caller struct {
	id      identity.Identification
	m       *Manager
	revoked atomic.Bool
}

// ID returns the identification the caller was issued to.
func (c *Caller) ID() identity.Identification {
	return c.id
}

// Fire places event in the slot. It fails with CodeMultipleEvents when the
// slot is occupied; callers must wait for it to drain rather than queue.
func (c *Caller) Fire(event *core.Event) error {
	if c.revoked.Load() {
		return ErrCallerRevoked(c.id.ID())
	}
	if event == nil {
		return oops.Code(CodeInvalidEvent).With("caller", c.id.ID()).Errorf("event is nil")
	}
	select {
	case c.m.slot <- event:
		return nil
	default:
		return ErrMultipleEvents(c.id.ID())
	}
}
