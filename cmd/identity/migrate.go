// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/restrolabs/identity/internal/auth/postgres"
	"github.com/restrolabs/identity/internal/config"
)

// Default timeout for migrate commands.
const defaultMigrateTimeout = 30 * time.Second

// migrateConfig holds configuration for the migrate command.
type migrateConfig struct {
	down    bool
	timeout time.Duration
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Long: `Applies all pending schema migrations to the user directory database.
With --down, rolls back all migrations instead (destructive: drops all
tables and data).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, args, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.down, "down", false, "roll back all migrations (destructive)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultMigrateTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string, cfg *migrateConfig) error {
	conf, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	migrator, err := postgres.NewMigrator(conf.DatabaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close errors don't affect the migration outcome

	if cfg.down {
		cmd.Println("Rolling back all migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback complete")
		return nil
	}

	cmd.Println("Applying migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations applied (version %d, dirty=%t)\n", version, dirty)
	return nil
}
