// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"os"

	"github.com/holomush/izou/internal/config"
	"github.com/holomush/izou/internal/host"
	"github.com/holomush/izou/internal/observability"
)

// RunDeps contains injectable dependencies for the run command.
// All fields with nil values will use their default implementations.
type RunDeps struct {
	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, registrars ...observability.MetricsRegistrar) ObservabilityServer

	// AddOnFactory builds the add-ons to install from the configuration.
	// Default: builtinAddOns
	AddOnFactory func(cfg *config.Config) []host.AddOn

	// Signals is the set of signals that trigger shutdown.
	// Default: SIGINT, SIGTERM
	Signals []os.Signal
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
