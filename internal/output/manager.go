// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package output hands fully processed events to the registered output
// plugins.
package output

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/worker"
)

// DefaultTimeout bounds a single plugin delivery.
const DefaultTimeout = 5 * time.Second

// Plugin renders events, e.g. to speech, a display or a log.
type Plugin interface {
	ID() string
	RenderOutput(ctx context.Context, event *core.Event) error
}

// subscription tracks which events a plugin wants.
type subscription struct {
	plugin    Plugin
	interests []string // empty = all events
}

func (s subscription) wants(event *core.Event) bool {
	if len(s.interests) == 0 {
		return true
	}
	for _, info := range event.Information() {
		if slices.Contains(s.interests, info) {
			return true
		}
	}
	return false
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the per-plugin delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// Manager schedules output plugins for dispatched events.
type Manager struct {
	pool    *worker.Pool
	timeout time.Duration

	mu            sync.RWMutex
	subscriptions []subscription
	wg            sync.WaitGroup
}

// New creates a Manager that runs plugins on pool.
func New(pool *worker.Pool, opts ...Option) *Manager {
	m := &Manager{
		pool:    pool,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddPlugin registers p for events whose type or descriptors match one of
// interests, or for every event when no interests are given. Adding a
// plugin with an existing ID replaces its subscription.
func (m *Manager) AddPlugin(p Plugin, interests ...string) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := subscription{plugin: p, interests: slices.Clone(interests)}
	for i, existing := range m.subscriptions {
		if existing.plugin.ID() == p.ID() {
			m.subscriptions[i] = sub
			return
		}
	}
	m.subscriptions = append(m.subscriptions, sub)
}

// RemovePlugin unregisters the plugin with the given ID.
func (m *Manager) RemovePlugin(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.subscriptions)
	m.subscriptions = slices.DeleteFunc(m.subscriptions, func(s subscription) bool {
		return s.plugin.ID() == id
	})
	return len(m.subscriptions) != n
}

// Plugins returns the IDs of the registered plugins.
func (m *Manager) Plugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		ids = append(ids, s.plugin.ID())
	}
	return ids
}

// PassDataToOutputPlugins schedules every interested plugin and returns
// without waiting. Plugin failures are logged and never reach the caller.
func (m *Manager) PassDataToOutputPlugins(ctx context.Context, event *core.Event) {
	if event == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		if sub.wants(event) {
			m.deliverAsync(ctx, sub.plugin, event)
		}
	}
}

// Wait blocks until all scheduled deliveries have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) deliverAsync(ctx context.Context, p Plugin, event *core.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)

	m.wg.Add(1)
	f := worker.Go(ctx, m.pool, p.ID(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.RenderOutput(ctx, event)
	})

	go func() {
		defer m.wg.Done()
		defer cancel()

		_, err := f.Result()
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			slog.Warn("output plugin timed out",
				"plugin", p.ID(),
				"event_id", event.ID().String(),
				"event_type", event.Type(),
				"timeout", m.timeout.String())
		case errors.Is(err, context.Canceled):
			slog.Debug("output plugin canceled",
				"plugin", p.ID(),
				"event_id", event.ID().String())
		default:
			slog.Error("output plugin failed",
				"plugin", p.ID(),
				"event_id", event.ID().String(),
				"event_type", event.Type(),
				"error", err)
		}
	}()
}
