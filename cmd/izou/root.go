// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the izou CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "izou",
		Short: "izou - an event-driven add-on host",
		Long: `izou hosts add-ons that talk to each other through events,
on-demand resources and output plugins.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}
