// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package auth

import (
	"context"
	"regexp"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// MinPasswordLength is the minimum raw password length accepted at
// registration. Applies to the plaintext secret, never to stored hashes.
const MinPasswordLength = 6

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is a credential record: the persisted identity the platform
// authenticates against. PasswordHash is write-once at registration and is
// never exposed outside this package's services.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Roles        []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  time.Time
}

// NewUser creates a validated User instance. The password hash must already
// be produced by a PasswordHasher; raw secrets are rejected upstream and
// never reach this constructor.
func NewUser(username, passwordHash, email, phoneNumber string, roles []string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("password hash cannot be empty")
	}
	normalized, err := NormalizeRoles(roles)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PhoneNumber:  phoneNumber,
		PasswordHash: passwordHash,
		Roles:        normalized,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RecordLogin stamps the last successful login time.
func (u *User) RecordLogin() {
	now := time.Now()
	u.LastLoginAt = now
	u.UpdatedAt = now
}

// HasRole reports whether the user carries the named role.
// Role names are case-sensitive, exact match.
func (u *User) HasRole(name string) bool {
	return slices.Contains(u.Roles, name)
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_INPUT").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_INPUT").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword validates a raw password at registration.
// The password value itself never appears in the returned error.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_INVALID_INPUT").Errorf("password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// NormalizeRoles sorts role names and rejects empty or duplicate entries.
// Role names are compared case-sensitively.
func NormalizeRoles(roles []string) ([]string, error) {
	normalized := slices.Clone(roles)
	slices.Sort(normalized)
	for i, name := range normalized {
		if name == "" {
			return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("role name cannot be empty")
		}
		if i > 0 && normalized[i-1] == name {
			return nil, oops.Code("AUTH_INVALID_INPUT").
				With("role", name).
				Errorf("duplicate role name %q", name)
		}
	}
	return normalized, nil
}

// UserRepository is the user directory contract consumed by this package.
// Implementations translate their native error signals to ErrNotFound and
// ErrDuplicate; no driver error crosses this boundary.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate (wrapped) if username,
	// email, or phone number collides with an existing record.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-sensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ExistsByUsername reports whether a user with the username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail reports whether a user with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ExistsByPhone reports whether a user with the phone number exists.
	ExistsByPhone(ctx context.Context, phoneNumber string) (bool, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error
}
