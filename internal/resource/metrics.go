// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for builder calls.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Generation kinds.
const (
	KindEvent   = "event"
	KindRequest = "request"
)

// BuilderCalls counts builder invocations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var BuilderCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "izou_resource_builder_calls_total",
		Help: "Total number of resource builder invocations",
	},
	[]string{"outcome"},
)

// GenerationDuration observes how long a fan-out took, including waiting
// for the collective deadline.
var GenerationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "izou_resource_generation_duration_seconds",
		Help:    "Resource generation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// RegisterMetrics registers resource metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(BuilderCalls)
	reg.MustRegister(GenerationDuration)
}

func recordGeneration(kind string, d time.Duration) {
	GenerationDuration.WithLabelValues(kind).Observe(d.Seconds())
}
