// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// InvalidCredentialsMessage is the single caller-visible message for every
// authentication failure. Unknown username, wrong password, malformed stored
// hash, and deactivated account are indistinguishable to the caller, which
// defeats user enumeration attacks.
const InvalidCredentialsMessage = "invalid username or password"

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Identity is the secret-free result of a successful authentication.
// It never carries the password hash and lives only for the duration of
// the login call that produced it.
type Identity struct {
	ID       ulid.ULID
	Username string
	Roles    []string
}

// Authenticator verifies a username/password pair against the user directory.
type Authenticator struct {
	users  UserRepository
	hasher PasswordHasher
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserRepository, hasher PasswordHasher) (*Authenticator, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("password hasher is required")
	}
	return &Authenticator{users: users, hasher: hasher}, nil
}

// Authenticate looks up the credential record for username and verifies the
// password against its stored hash. All of the failure modes listed on
// InvalidCredentialsMessage map to the same AUTH_INVALID_CREDENTIALS error.
// Directory I/O failures surface as AUTH_INTERNAL with the cause wrapped for
// internal logging; the raw password is never part of any error or log line.
// No state is mutated on failure.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	user, lookupErr := a.users.GetByUsername(ctx, username)

	// Verify against a dummy hash when the user is unknown so lookup misses
	// and password mismatches take comparable time.
	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_INTERNAL").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	matched := a.hasher.Matches(password, targetHash)

	if !userExists || !matched || !user.Active {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("%s", InvalidCredentialsMessage)
	}

	// Stamp last login; authentication succeeds even if the write fails.
	user.RecordLogin()
	_ = a.users.Update(ctx, user) //nolint:errcheck // Best effort

	return &Identity{
		ID:       user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	}, nil
}
