// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/restrolabs/identity/pkg/errutil"
)

// RoleCustomer is the role granted to registrations that request no roles.
const RoleCustomer = "CUSTOMER"

// MetricsSink receives authentication outcome events. The core stays free of
// any metrics library; observability provides the production implementation.
type MetricsSink interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
	RecordTokenIssued()
}

// Metric outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// nopMetrics discards all events.
type nopMetrics struct{}

func (nopMetrics) RecordLogin(string)        {}
func (nopMetrics) RecordRegistration(string) {}
func (nopMetrics) RecordTokenIssued()        {}

// Session is the externally visible result of a successful login: the
// secret-free identity plus the signed access token and its expiry.
type Session struct {
	Identity  Identity
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RegisterInput carries the fields accepted at registration. Password is the
// raw secret; it is hashed before any persistence call and is never stored,
// logged, or echoed back.
type RegisterInput struct {
	Username    string
	Password    string
	Email       string
	PhoneNumber string
	Roles       []string
}

// SessionService orchestrates registration, login, and logout.
type SessionService struct {
	auth    *Authenticator
	users   UserRepository
	hasher  PasswordHasher
	codec   *TokenCodec
	logger  *slog.Logger
	metrics MetricsSink
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *SessionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to a no-op sink.
func WithMetrics(metrics MetricsSink) SessionOption {
	return func(s *SessionService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewSessionService creates a SessionService.
func NewSessionService(authenticator *Authenticator, users UserRepository, hasher PasswordHasher, codec *TokenCodec, opts ...SessionOption) (*SessionService, error) {
	if authenticator == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("authenticator is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("token codec is required")
	}

	svc := &SessionService{
		auth:    authenticator,
		users:   users,
		hasher:  hasher,
		codec:   codec,
		logger:  slog.Default(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login authenticates the credentials and issues an access token for the
// verified identity. The returned session never carries the password hash.
func (s *SessionService) Login(ctx context.Context, username, password string) (*Session, error) {
	identity, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		if IsCode(err, "AUTH_INVALID_CREDENTIALS") {
			s.metrics.RecordLogin(OutcomeFailure)
			s.logger.Info("login rejected", "username", username)
		} else {
			s.metrics.RecordLogin(OutcomeError)
			errutil.LogError(s.logger, "login failed", err)
		}
		return nil, err
	}

	token, err := s.codec.Encode(identity.Username, identity.Roles)
	if err != nil {
		s.metrics.RecordLogin(OutcomeError)
		errutil.LogError(s.logger, "token issuance failed", err)
		return nil, oops.Code("AUTH_INTERNAL").
			With("operation", "encode token").
			Wrap(err)
	}

	// Read the authoritative issue/expiry window back from the token itself.
	claims, err := s.codec.Decode(token)
	if err != nil {
		s.metrics.RecordLogin(OutcomeError)
		errutil.LogError(s.logger, "issued token failed decode", err)
		return nil, oops.Code("AUTH_INTERNAL").
			With("operation", "decode issued token").
			Wrap(err)
	}

	s.metrics.RecordLogin(OutcomeSuccess)
	s.metrics.RecordTokenIssued()
	s.logger.Info("login succeeded", "username", identity.Username)

	return &Session{
		Identity:  *identity,
		Token:     token,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Register validates the input, hashes the password, and persists a new user
// through the directory. The raw secret never reaches the directory. A
// collision on username, email, or phone number surfaces as
// AUTH_DUPLICATE_IDENTITY and is not retried.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*Identity, error) {
	if err := ValidateUsername(input.Username); err != nil {
		s.metrics.RecordRegistration(OutcomeFailure)
		return nil, err
	}
	if err := ValidatePassword(input.Password); err != nil {
		s.metrics.RecordRegistration(OutcomeFailure)
		return nil, err
	}

	roles := input.Roles
	if len(roles) == 0 {
		roles = []string{RoleCustomer}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.metrics.RecordRegistration(OutcomeError)
		errutil.LogError(s.logger, "password hashing failed", err)
		return nil, oops.Code("AUTH_INTERNAL").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(input.Username, hash, input.Email, input.PhoneNumber, roles)
	if err != nil {
		s.metrics.RecordRegistration(OutcomeFailure)
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			s.metrics.RecordRegistration(OutcomeFailure)
			s.logger.Info("registration conflict", "username", input.Username)
			return nil, oops.Code("AUTH_DUPLICATE_IDENTITY").
				With("username", input.Username).
				Wrap(err)
		}
		s.metrics.RecordRegistration(OutcomeError)
		errutil.LogError(s.logger, "registration failed", err)
		return nil, oops.Code("AUTH_INTERNAL").
			With("operation", "create user").
			Wrap(err)
	}

	s.metrics.RecordRegistration(OutcomeSuccess)
	s.logger.Info("user registered", "username", user.Username, "id", user.ID.String())

	return &Identity{
		ID:       user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	}, nil
}

// Logout acknowledges a logout for an existing user. Tokens are stateless,
// so no invalidation happens here: outstanding tokens remain valid until
// expiry and the client is expected to discard its copy. The call is
// idempotent; it fails with AUTH_NOT_FOUND only when the user does not exist.
func (s *SessionService) Logout(ctx context.Context, username string) error {
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		errutil.LogError(s.logger, "logout lookup failed", err)
		return oops.Code("AUTH_INTERNAL").
			With("operation", "exists by username").
			Wrap(err)
	}
	if !exists {
		return oops.Code("AUTH_NOT_FOUND").
			With("username", username).
			Wrap(ErrNotFound)
	}

	s.logger.Info("logout acknowledged", "username", username)
	return nil
}

// IsCode reports whether err carries the given oops error code.
func IsCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}
