// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package distributor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for dispatched events.
const (
	OutcomeDispatched = "dispatched"
	OutcomeVetoed     = "vetoed"
	OutcomeRejected   = "rejected"
	OutcomeAbandoned  = "abandoned"
)

// EventsTotal counts events leaving the pipeline by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var EventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "izou_events_total",
		Help: "Total number of events processed by the distributor",
	},
	[]string{"outcome"},
)

// DispatchDuration observes the time one event spends in the pipeline.
var DispatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "izou_event_dispatch_duration_seconds",
		Help:    "Event pipeline duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// ListenerTimeouts counts listeners that missed their collective deadline.
var ListenerTimeouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "izou_listener_timeouts_total",
		Help: "Total number of listeners that missed the deadline",
	},
)

// AdmissionTimeouts counts controllers that missed the admission deadline.
var AdmissionTimeouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "izou_admission_timeouts_total",
		Help: "Total number of admission controllers that missed the deadline",
	},
)

// QueueDepth is the number of queued events waiting for the dispatch loop.
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "izou_event_queue_depth",
		Help: "Number of events waiting in the distributor queue",
	},
)

// RegisterMetrics registers distributor metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(EventsTotal)
	reg.MustRegister(DispatchDuration)
	reg.MustRegister(ListenerTimeouts)
	reg.MustRegister(AdmissionTimeouts)
	reg.MustRegister(QueueDepth)
}

func recordOutcome(outcome string, start time.Time) {
	EventsTotal.WithLabelValues(outcome).Inc()
	DispatchDuration.Observe(time.Since(start).Seconds())
}
