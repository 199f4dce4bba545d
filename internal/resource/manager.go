// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package resource resolves resource requests by fanning out to registered
// resource builders under a collective deadline.
package resource

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/identity"
	"github.com/holomush/izou/internal/worker"
	"github.com/holomush/izou/pkg/errutil"
)

// DefaultTimeout is the collective budget for one fan-out.
const DefaultTimeout = 10 * time.Second

// Builder produces resources. The builder ID doubles as its provider
// identity when requests carry a provider constraint.
type Builder interface {
	identity.Identifiable

	// AnnounceResources lists the resource templates the builder can fulfil.
	AnnounceResources() []core.Resource

	// AnnounceEvents lists the event types and descriptors that trigger the
	// builder during event dispatch.
	AnnounceEvents() []string

	// ProvideResources fulfils requests. event is nil for explicit requests.
	// Implementations must return promptly once ctx is cancelled.
	ProvideResources(ctx context.Context, requests []core.Resource, event *core.Event) ([]core.Resource, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the collective deadline for a fan-out.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
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

// Manager keeps the builder indices and runs fan-outs on a worker pool.
//
// Registrations are copy-on-write: a generation in progress works on the
// snapshot it started with, so builders added or removed concurrently may or
// may not take part.
type Manager struct {
	pool    *worker.Pool
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	idx atomic.Pointer[index]
}

// New creates a Manager that runs builders on pool.
func New(pool *worker.Pool, opts ...Option) *Manager {
	m := &Manager{
		pool:    pool,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.idx.Store(newIndex(nil))
	return m
}

// Register adds b to both indices. A builder with the ID of an existing
// registration replaces it in place.
func (m *Manager) Register(b Builder) error {
	if b == nil {
		return ErrInvalidBuilder("builder is nil")
	}
	if b.ID() == "" {
		return ErrInvalidBuilder("builder has an empty ID")
	}

	e := &entry{
		builder:   b,
		provider:  identity.Named(b.ID()),
		resources: slices.Clone(b.AnnounceResources()),
		events:    slices.Clone(b.AnnounceEvents()),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := slices.Clone(m.idx.Load().entries)
	if i := slices.IndexFunc(entries, func(x *entry) bool { return x.builder.ID() == b.ID() }); i >= 0 {
		entries[i] = e
	} else {
		entries = append(entries, e)
	}
	m.idx.Store(newIndex(entries))

	m.logger.Debug("resource builder registered",
		"builder", b.ID(),
		"resources", len(e.resources),
		"events", e.events)
	return nil
}

// Unregister removes b from both indices. Invocations already running are
// not cancelled.
func (m *Manager) Unregister(b Builder) bool {
	if b == nil {
		return false
	}
	return m.UnregisterID(b.ID())
}

// UnregisterID removes the builder registered under id.
func (m *Manager) UnregisterID(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.idx.Load().entries
	entries := slices.DeleteFunc(slices.Clone(current), func(x *entry) bool {
		return x.builder.ID() == id
	})
	if len(entries) == len(current) {
		return false
	}
	m.idx.Store(newIndex(entries))
	m.logger.Debug("resource builder unregistered", "builder", id)
	return true
}

// Builders returns the registered builder IDs in registration order.
func (m *Manager) Builders() []string {
	entries := m.idx.Load().entries
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.builder.ID())
	}
	return ids
}

// GenerateForEvent runs every builder triggered by the event's type or
// descriptors and returns the combined results. Builders that fail or miss
// the deadline contribute nothing. Returns nil without touching the pool
// when no builder matches.
func (m *Manager) GenerateForEvent(ctx context.Context, event *core.Event) []core.Resource {
	if event == nil {
		return nil
	}
	matched := m.idx.Load().forInformation(event.Information())
	if len(matched) == 0 {
		return nil
	}

	calls := make([]call, 0, len(matched))
	for _, e := range matched {
		calls = append(calls, call{entry: e, requests: slices.Clone(e.resources)})
	}
	return m.fanOut(ctx, KindEvent, calls, event)
}

// Generate fulfils explicit requests. Every builder able to serve a request
// is invoked, each with only the requests it matched.
func (m *Manager) Generate(ctx context.Context, requests []core.Resource) []core.Resource {
	if len(requests) == 0 {
		return nil
	}
	idx := m.idx.Load()

	grouped := make(map[*entry][]core.Resource)
	for _, req := range requests {
		for _, e := range idx.forRequest(req) {
			grouped[e] = append(grouped[e], req)
		}
	}
	if len(grouped) == 0 {
		return nil
	}

	calls := make([]call, 0, len(grouped))
	for _, e := range idx.entries {
		if reqs, ok := grouped[e]; ok {
			calls = append(calls, call{entry: e, requests: reqs})
		}
	}
	return m.fanOut(ctx, KindRequest, calls, nil)
}

// GenerateOne fulfils a single request using only the first registered
// builder that can serve it, unlike Generate which asks all of them. The
// second return value is false when no builder matches.
func (m *Manager) GenerateOne(ctx context.Context, request core.Resource) (*worker.Future[[]core.Resource], bool) {
	matched := m.idx.Load().forRequest(request)
	if len(matched) == 0 {
		return nil, false
	}
	e := matched[0]
	requests := []core.Resource{request}

	return worker.Go(ctx, m.pool, e.builder.ID(), func(ctx context.Context) ([]core.Resource, error) {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		start := time.Now()
		defer func() { recordGeneration(KindRequest, time.Since(start)) }()

		produced, err := e.builder.ProvideResources(ctx, requests, nil)
		if err != nil {
			BuilderCalls.WithLabelValues(OutcomeError).Inc()
			return nil, err
		}
		BuilderCalls.WithLabelValues(OutcomeSuccess).Inc()
		return stamp(produced, e.provider), nil
	}), true
}

type call struct {
	entry    *entry
	requests []core.Resource
}

func (m *Manager) fanOut(ctx context.Context, kind string, calls []call, event *core.Event) []core.Resource {
	start := time.Now()
	defer func() { recordGeneration(kind, time.Since(start)) }()

	futures := make([]*worker.Future[[]core.Resource], 0, len(calls))
	for _, c := range calls {
		futures = append(futures, worker.Go(ctx, m.pool, c.entry.builder.ID(),
			func(ctx context.Context) ([]core.Resource, error) {
				return c.entry.builder.ProvideResources(ctx, c.requests, event)
			}))
	}

	var results []core.Resource
	for i, outcome := range worker.AwaitAll(ctx, m.timeout, futures) {
		attrs := logAttrs(calls[i].entry, event)
		switch {
		case outcome.TimedOut:
			BuilderCalls.WithLabelValues(OutcomeTimeout).Inc()
			m.logger.WarnContext(ctx, "resource builder missed deadline",
				append(attrs, "timeout", m.timeout)...)
		case outcome.Err != nil:
			BuilderCalls.WithLabelValues(OutcomeError).Inc()
			errutil.LogWarnContext(ctx, m.logger, "resource builder failed", outcome.Err, attrs...)
		default:
			BuilderCalls.WithLabelValues(OutcomeSuccess).Inc()
			results = append(results, stamp(outcome.Value, calls[i].entry.provider)...)
		}
	}
	return results
}

func logAttrs(e *entry, event *core.Event) []any {
	attrs := []any{"builder", e.builder.ID()}
	if event != nil {
		attrs = append(attrs, "event_id", event.ID().String(), "event_type", event.Type())
	}
	return attrs
}

// stamp returns a copy of resources with the provider filled in where it
// is missing. The builder's slice is never written.
func stamp(resources []core.Resource, provider identity.Identification) []core.Resource {
	resources = slices.Clone(resources)
	for i := range resources {
		if resources[i].Provider.IsZero() {
			resources[i].Provider = provider
		}
	}
	return resources
}
