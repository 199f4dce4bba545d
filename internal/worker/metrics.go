// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package worker

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for task metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
	OutcomeCanceled = "canceled"
	OutcomeRejected = "rejected"
)

// TasksTotal counts finished tasks per pool and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var TasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "izou_worker_tasks_total",
		Help: "Total number of worker tasks by outcome",
	},
	[]string{"pool", "outcome"},
)

// TasksInFlight tracks submitted tasks that have not finished.
var TasksInFlight = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "izou_worker_tasks_in_flight",
		Help: "Number of worker tasks submitted but not finished",
	},
	[]string{"pool"},
)

// RegisterMetrics registers worker metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(TasksTotal)
	reg.MustRegister(TasksInFlight)
}
