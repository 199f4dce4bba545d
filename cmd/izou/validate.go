// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/izou/internal/config"
	"github.com/holomush/izou/internal/host"
	"github.com/holomush/izou/internal/xdg"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file against the JSON Schema and the
field constraints, then compile its admission policies and permission
grants. Without an argument the --config file, or the per-user file
under $XDG_CONFIG_HOME/izou, is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := xdg.ResolveConfigFile(configFile)
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return oops.Errorf("no configuration file given")
			}

			cfg, err := config.Load(path, nil)
			if err != nil {
				return oops.With("path", path).Wrapf(err, "invalid configuration")
			}
			rt, err := host.New(cfg)
			if err != nil {
				return oops.With("path", path).Wrapf(err, "invalid configuration")
			}
			if err := rt.Stop(cmd.Context()); err != nil {
				return oops.Wrapf(err, "release runtime")
			}

			cmd.Printf("%s: configuration valid\n", path)
			return nil
		},
	}
}
