// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restrolabs/identity/internal/auth"
	"github.com/restrolabs/identity/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates active user with sorted roles", func(t *testing.T) {
		user, err := auth.NewUser("alice", "$argon2id$hash", "alice@example.com", "5551234", []string{"CUSTOMER", "ADMIN"})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, []string{"ADMIN", "CUSTOMER"}, user.Roles)
		assert.True(t, user.Active)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
		assert.True(t, user.LastLoginAt.IsZero())
	})

	t.Run("rejects empty password hash", func(t *testing.T) {
		_, err := auth.NewUser("alice", "", "", "", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_INPUT")
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		_, err := auth.NewUser("1alice", "$argon2id$hash", "", "", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_INPUT")
	})
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid simple", "alice", false},
		{"valid with underscore and digits", "alice_99", false},
		{"valid minimum length", "abc", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 31), true},
		{"starts with digit", "1alice", true},
		{"starts with underscore", "_alice", true},
		{"contains space", "ali ce", true},
		{"contains hyphen", "ali-ce", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "AUTH_INVALID_INPUT")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Run("rejects empty password", func(t *testing.T) {
		err := auth.ValidatePassword("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_INPUT")
	})

	t.Run("rejects short password", func(t *testing.T) {
		err := auth.ValidatePassword("abc")
		require.Error(t, err)
	})

	t.Run("accepts minimum length", func(t *testing.T) {
		assert.NoError(t, auth.ValidatePassword("Secr3t!"))
	})
}

func TestNormalizeRoles(t *testing.T) {
	t.Run("sorts roles", func(t *testing.T) {
		roles, err := auth.NormalizeRoles([]string{"DELIVERY", "ADMIN", "CUSTOMER"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ADMIN", "CUSTOMER", "DELIVERY"}, roles)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		input := []string{"B", "A"}
		_, err := auth.NormalizeRoles(input)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, input)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := auth.NormalizeRoles([]string{"CUSTOMER", "CUSTOMER"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_INPUT")
	})

	t.Run("role names are case-sensitive", func(t *testing.T) {
		roles, err := auth.NormalizeRoles([]string{"customer", "CUSTOMER"})
		require.NoError(t, err)
		assert.Len(t, roles, 2)
	})

	t.Run("rejects empty role name", func(t *testing.T) {
		_, err := auth.NormalizeRoles([]string{""})
		require.Error(t, err)
	})

	t.Run("empty input yields empty set", func(t *testing.T) {
		roles, err := auth.NormalizeRoles(nil)
		require.NoError(t, err)
		assert.Empty(t, roles)
	})
}

func TestUser_HasRole(t *testing.T) {
	user, err := auth.NewUser("alice", "$argon2id$hash", "", "", []string{"CUSTOMER"})
	require.NoError(t, err)

	assert.True(t, user.HasRole("CUSTOMER"))
	assert.False(t, user.HasRole("ADMIN"))
	assert.False(t, user.HasRole("customer")) // exact match
}

func TestUser_RecordLogin(t *testing.T) {
	user, err := auth.NewUser("alice", "$argon2id$hash", "", "", nil)
	require.NoError(t, err)

	user.RecordLogin()
	assert.False(t, user.LastLoginAt.IsZero())
	assert.False(t, user.UpdatedAt.Before(user.CreatedAt))
}
