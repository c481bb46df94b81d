// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/restrolabs/identity/internal/auth"
	"github.com/restrolabs/identity/internal/auth/postgres"
	"github.com/restrolabs/identity/internal/config"
	"github.com/restrolabs/identity/internal/logging"
)

// EnvPassword supplies the secret to non-interactive user commands so it
// never appears in shell history or process listings.
const EnvPassword = "IDENTITY_PASSWORD"

// Default timeout for user commands.
const defaultUserTimeout = 30 * time.Second

// userConfig holds configuration for the user subcommands.
type userConfig struct {
	email   string
	phone   string
	roles   []string
	timeout time.Duration
}

// NewUserCmd creates the user subcommand group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserLogoutCmd())
	return cmd
}

func newUserRegisterCmd() *cobra.Command {
	cfg := &userConfig{}

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new user account",
		Long: `Registers a new user in the directory. The password is read from the
IDENTITY_PASSWORD environment variable, or from stdin when unset. Only
the argon2id hash of the password is persisted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserRegister(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "email address")
	cmd.Flags().StringVar(&cfg.phone, "phone", "", "phone number")
	cmd.Flags().StringSliceVar(&cfg.roles, "role", nil, "role name (repeatable; defaults to CUSTOMER)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultUserTimeout, "timeout for database operations")

	return cmd
}

func runUserRegister(cmd *cobra.Command, args []string, cfg *userConfig) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd, cfg.timeout)
	defer cancel()

	sessions, pool, err := buildSessionService(ctx, cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	identity, err := sessions.Register(ctx, auth.RegisterInput{
		Username:    args[0],
		Password:    password,
		Email:       cfg.email,
		PhoneNumber: cfg.phone,
		Roles:       cfg.roles,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Registered %s (id %s, roles %s)\n",
		identity.Username, identity.ID.String(), strings.Join(identity.Roles, ","))
	return nil
}

func newUserLoginCmd() *cobra.Command {
	cfg := &userConfig{}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Verify credentials and print an access token",
		Long: `Authenticates the username/password pair and prints the issued access
token. The password is read from the IDENTITY_PASSWORD environment
variable, or from stdin when unset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserLogin(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultUserTimeout, "timeout for database operations")

	return cmd
}

func runUserLogin(cmd *cobra.Command, args []string, cfg *userConfig) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd, cfg.timeout)
	defer cancel()

	sessions, pool, err := buildSessionService(ctx, cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	session, err := sessions.Login(ctx, args[0], password)
	if err != nil {
		return err
	}

	cmd.Printf("Token (expires %s):\n%s\n",
		session.ExpiresAt.Format(time.RFC3339), session.Token)
	return nil
}

func newUserLogoutCmd() *cobra.Command {
	cfg := &userConfig{}

	cmd := &cobra.Command{
		Use:   "logout <username>",
		Short: "Acknowledge a logout for a user",
		Long: `Acknowledges a logout for an existing user. Tokens are stateless, so
outstanding tokens remain valid until expiry; clients discard their copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserLogout(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultUserTimeout, "timeout for database operations")

	return cmd
}

func runUserLogout(cmd *cobra.Command, args []string, cfg *userConfig) error {
	ctx, cancel := withTimeout(cmd, cfg.timeout)
	defer cancel()

	sessions, pool, err := buildSessionService(ctx, cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := sessions.Logout(ctx, args[0]); err != nil {
		return err
	}

	cmd.Printf("Logout acknowledged for %s\n", args[0])
	return nil
}

// readPassword reads the secret from IDENTITY_PASSWORD, or from stdin.
// The value is never echoed or logged.
func readPassword(cmd *cobra.Command) (string, error) {
	if password := os.Getenv(EnvPassword); password != "" {
		return password, nil
	}

	cmd.PrintErrln("Password:")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", oops.Code("AUTH_INVALID_INPUT").
			With("operation", "read password from stdin").
			Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// buildSessionService wires the session service against the configured
// database and signing key. The caller owns the returned pool.
func buildSessionService(ctx context.Context, cmd *cobra.Command) (*auth.SessionService, *pgxpool.Pool, error) {
	conf, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logging.SetDefault("identity", version, conf.LogFormat)

	key, err := conf.RequireSigningKey()
	if err != nil {
		return nil, nil, err
	}

	pool, err := postgres.Connect(ctx, conf.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	sessions, err := wireSessionService(pool, key, conf.TokenTTL, nil)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return sessions, pool, nil
}

// wireSessionService assembles the session service over an existing pool.
// A nil metrics sink leaves metrics disabled; serve passes the counters the
// observability server exports.
func wireSessionService(pool *pgxpool.Pool, key []byte, ttl time.Duration, metrics auth.MetricsSink) (*auth.SessionService, error) {
	users := postgres.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher()

	codec, err := auth.NewTokenCodec(key, ttl)
	if err != nil {
		return nil, err
	}

	authenticator, err := auth.NewAuthenticator(users, hasher)
	if err != nil {
		return nil, err
	}

	var opts []auth.SessionOption
	if metrics != nil {
		opts = append(opts, auth.WithMetrics(metrics))
	}
	return auth.NewSessionService(authenticator, users, hasher, codec, opts...)
}

// withTimeout derives a bounded context from the command's context.
func withTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
