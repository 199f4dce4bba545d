// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/izou/internal/addon/clock"
	"github.com/holomush/izou/internal/addon/logout"
	"github.com/holomush/izou/internal/config"
	"github.com/holomush/izou/internal/distributor"
	"github.com/holomush/izou/internal/host"
	"github.com/holomush/izou/internal/logging"
	"github.com/holomush/izou/internal/observability"
	"github.com/holomush/izou/internal/resource"
	"github.com/holomush/izou/internal/worker"
	"github.com/holomush/izou/internal/xdg"
	"github.com/holomush/izou/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the add-on host",
		Long: `Start the event distributor, the local event manager and the
built-in add-ons, and serve metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runWithDeps starts the host with injectable dependencies.
// If deps is nil, default implementations are used.
func runWithDeps(ctx context.Context, cmd *cobra.Command, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.MetricsRegistrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	if deps.AddOnFactory == nil {
		deps.AddOnFactory = builtinAddOns
	}
	if len(deps.Signals) == 0 {
		deps.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	path := xdg.ResolveConfigFile(configFile)
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return oops.Wrapf(err, "load configuration")
	}

	logger := logging.SetDefault("izou", version, cfg.Log.Format, cfg.Log.Level)
	logger.Info("starting izou",
		"config", path,
		"system_pool", cfg.Pools.System,
		"addon_pool", cfg.Pools.AddOn)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var rt *host.Runtime
	var obsServer ObservabilityServer
	hostOpts := []host.Option{host.WithLogger(logger)}
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr,
			func() bool { return rt != nil && rt.Ready() },
			worker.RegisterMetrics,
			resource.RegisterMetrics,
			distributor.RegisterMetrics,
		)
		hostOpts = append(hostOpts, host.WithMetrics(obsServer.Metrics()))
	}

	rt, err = host.New(cfg, hostOpts...)
	if err != nil {
		return oops.Wrapf(err, "create runtime")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if stopErr := rt.Stop(shutdownCtx); stopErr != nil {
			errutil.LogError(logger, "error stopping runtime", stopErr)
		}
	}()

	for _, addon := range deps.AddOnFactory(cfg) {
		if err := rt.Install(ctx, addon); err != nil {
			errutil.LogError(logger, "failed to install add-on", err, "addon", addon.ID())
		}
	}

	if err := rt.Start(ctx); err != nil {
		return oops.Wrapf(err, "start runtime")
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Wrapf(err, "start observability server")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
				slog.Warn("error stopping observability server", "error", stopErr)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, deps.Signals...)
	defer signal.Stop(sigChan)

	cmd.Println("izou started")
	logger.Info("izou ready", "addons", rt.AddOns())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down")
	return nil
}

// builtinAddOns returns the built-in add-ons enabled in cfg.
func builtinAddOns(cfg *config.Config) []host.AddOn {
	var addOns []host.AddOn
	if cfg.AddOns.Clock.Enabled {
		addOns = append(addOns, clock.New(clock.WithInterval(cfg.AddOns.Clock.Interval)))
	}
	if cfg.AddOns.Logout.Enabled {
		addOns = append(addOns, logout.New())
	}
	return addOns
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
