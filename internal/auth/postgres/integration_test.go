// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/restrolabs/identity/internal/auth"
	"github.com/restrolabs/identity/internal/auth/postgres"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain sets up a PostgreSQL testcontainer for integration tests.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("identity_test"),
		tcpostgres.WithUsername("identity"),
		tcpostgres.WithPassword("identity"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := postgres.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := postgres.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}

	testPool = pool
	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createUser(t *testing.T, repo *postgres.UserRepository, username, email, phone string, roles []string) *auth.User {
	t.Helper()
	ctx := context.Background()

	user, err := auth.NewUser(username, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", email, phone, roles)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, user))

	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
	})
	return user
}

func TestUserRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("create and fetch by username", func(t *testing.T) {
		user := createUser(t, repo, "roundtrip_user", "roundtrip@example.com", "5550100", []string{"ADMIN", "CUSTOMER"})

		stored, err := repo.GetByUsername(ctx, "roundtrip_user")
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.ID)
		assert.Equal(t, user.PasswordHash, stored.PasswordHash)
		assert.Equal(t, []string{"ADMIN", "CUSTOMER"}, stored.Roles)
		assert.True(t, stored.Active)
		assert.True(t, stored.LastLoginAt.IsZero())
	})

	t.Run("fetch by id and email", func(t *testing.T) {
		user := createUser(t, repo, "fetch_user", "fetch@example.com", "", nil)

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, byID.Username)

		byEmail, err := repo.GetByEmail(ctx, "fetch@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
	})

	t.Run("username lookup is case-sensitive", func(t *testing.T) {
		createUser(t, repo, "case_user", "", "", nil)

		_, err := repo.GetByUsername(ctx, "CASE_USER")
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})

	t.Run("empty optional fields stored as NULL do not collide", func(t *testing.T) {
		createUser(t, repo, "no_email_one", "", "", nil)
		createUser(t, repo, "no_email_two", "", "", nil)

		one, err := repo.GetByUsername(ctx, "no_email_one")
		require.NoError(t, err)
		assert.Empty(t, one.Email)
		assert.Empty(t, one.PhoneNumber)
	})
}

func TestUserRepository_Duplicates(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("duplicate username", func(t *testing.T) {
		createUser(t, repo, "dup_username", "", "", nil)

		dup, err := auth.NewUser("dup_username", "$argon2id$other", "", "", nil)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrDuplicate))
	})

	t.Run("duplicate email", func(t *testing.T) {
		createUser(t, repo, "dup_email_one", "shared@example.com", "", nil)

		dup, err := auth.NewUser("dup_email_two", "$argon2id$other", "shared@example.com", "", nil)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrDuplicate))
	})

	t.Run("duplicate phone number", func(t *testing.T) {
		createUser(t, repo, "dup_phone_one", "", "5550199", nil)

		dup, err := auth.NewUser("dup_phone_two", "$argon2id$other", "", "5550199", nil)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrDuplicate))
	})
}

func TestUserRepository_Exists(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	createUser(t, repo, "exists_user", "exists@example.com", "5550142", nil)

	exists, err := repo.ExistsByUsername(ctx, "exists_user")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByUsername(ctx, "no_such_user")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "exists@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByPhone(ctx, "5550142")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_UpdateIntegration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("persists last login stamp", func(t *testing.T) {
		user := createUser(t, repo, "update_user", "", "", nil)

		user.RecordLogin()
		require.NoError(t, repo.Update(ctx, user))

		stored, err := repo.GetByUsername(ctx, "update_user")
		require.NoError(t, err)
		assert.False(t, stored.LastLoginAt.IsZero())
	})

	t.Run("persists deactivation", func(t *testing.T) {
		user := createUser(t, repo, "deactivate_user", "", "", nil)

		user.Active = false
		require.NoError(t, repo.Update(ctx, user))

		stored, err := repo.GetByUsername(ctx, "deactivate_user")
		require.NoError(t, err)
		assert.False(t, stored.Active)
	})

	t.Run("missing user reports not found", func(t *testing.T) {
		ghost, err := auth.NewUser("ghost_user", "$argon2id$hash", "", "", nil)
		require.NoError(t, err)

		err = repo.Update(ctx, ghost)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})
}

func TestSessionService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	hasher := auth.NewArgon2idHasher()

	codec, err := auth.NewTokenCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(repo, hasher)
	require.NoError(t, err)
	service, err := auth.NewSessionService(authenticator, repo, hasher, codec)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE username = $1`, "e2e_alice")
	})

	identity, err := service.Register(ctx, auth.RegisterInput{
		Username: "e2e_alice",
		Password: "Secr3t!",
		Email:    "e2e@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleCustomer}, identity.Roles)

	session, err := service.Login(ctx, "e2e_alice", "Secr3t!")
	require.NoError(t, err)
	assert.True(t, codec.Validate(session.Token, "e2e_alice"))

	_, err = service.Login(ctx, "e2e_alice", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, auth.InvalidCredentialsMessage, err.Error())

	require.NoError(t, service.Logout(ctx, "e2e_alice"))
	assert.True(t, codec.Validate(session.Token, "e2e_alice"))
}
