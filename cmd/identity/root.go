// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the identity CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Identity - credential verification and token issuance",
		Long: `Identity is the credential-verification and token-issuance core
of the platform: it registers users, verifies username/password logins,
and mints signed, time-bounded, role-bearing access tokens that other
services verify offline with the shared signing key.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewTokenCmd())

	return cmd
}
