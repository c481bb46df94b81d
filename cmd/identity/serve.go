// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/restrolabs/identity/internal/auth/postgres"
	"github.com/restrolabs/identity/internal/config"
	"github.com/restrolabs/identity/internal/httpapi"
	"github.com/restrolabs/identity/internal/logging"
	"github.com/restrolabs/identity/internal/observability"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the identity service (session API, health, metrics)",
		Long: `Runs the long-lived identity service: applies pending schema
migrations, verifies the signing key, and hosts the register/login/logout
JSON API alongside metrics and health probes until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	conf, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logging.SetDefault("identity", version, conf.LogFormat)

	// Fail fast on a missing or short signing key rather than at first login.
	key, err := conf.RequireSigningKey()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	migrator, err := postgres.NewMigrator(conf.DatabaseURL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // migration error takes precedence
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	pool, err := postgres.Connect(ctx, conf.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	ready := func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	}

	obs := observability.NewServer(conf.ObservabilityAddr, ready)
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	// The session service feeds the counters the observability server
	// exports; the API surface below is what exercises it.
	sessions, err := wireSessionService(pool, key, conf.TokenTTL, obs.Metrics())
	if err != nil {
		stopServer(obs.Stop, "observability")
		return err
	}

	api, err := httpapi.NewServer(conf.APIAddr, sessions)
	if err != nil {
		stopServer(obs.Stop, "observability")
		return err
	}
	apiErrCh, err := api.Start()
	if err != nil {
		stopServer(obs.Stop, "observability")
		return err
	}

	slog.Info("identity service ready",
		"api_addr", api.Addr(),
		"observability_addr", obs.Addr(),
	)

	err = waitForShutdown(ctx, apiErrCh, obsErrCh)

	stopServer(api.Stop, "api")
	stopServer(obs.Stop, "observability")
	return err
}

// waitForShutdown blocks until the command context is cancelled or either
// server fails. A closed error channel means a clean server exit.
func waitForShutdown(ctx context.Context, apiErrCh, obsErrCh <-chan error) error {
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		return nil
	case err, ok := <-apiErrCh:
		if ok && err != nil {
			return oops.With("server", "api").Wrap(err)
		}
		return nil
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			return oops.With("server", "observability").Wrap(err)
		}
		return nil
	}
}

// stopServer shuts a server down within the shutdown timeout. Stop failures
// are logged, not returned: the serve error, if any, takes precedence.
func stopServer(stop func(context.Context) error, name string) {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(stopCtx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}
