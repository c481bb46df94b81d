// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Token configuration.
const (
	// MinSigningKeyLength is the minimum HMAC key size in bytes. HS256
	// keys shorter than the hash output weaken the signature.
	MinSigningKeyLength = 32

	// DefaultTokenTTL is the access token lifetime when configuration
	// does not override it.
	DefaultTokenTTL = 5 * time.Hour
)

// Claims is the verified payload of an access token: subject (username),
// role names, and the issue/expiry window.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// TokenCodec signs and verifies stateless access tokens. Any service holding
// the same signing key can verify tokens without calling back here. The key
// is immutable for the codec's lifetime and is never exposed.
type TokenCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// TokenCodecOption configures a TokenCodec.
type TokenCodecOption func(*TokenCodec)

// WithClock overrides the codec's time source. Used in tests to make
// expiry checks deterministic.
func WithClock(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec creates a TokenCodec with the given signing key and token
// lifetime. The key must be at least MinSigningKeyLength bytes; a ttl of
// zero or less selects DefaultTokenTTL.
func NewTokenCodec(key []byte, ttl time.Duration, opts ...TokenCodecOption) (*TokenCodec, error) {
	if len(key) < MinSigningKeyLength {
		return nil, oops.Code("AUTH_INVALID_INPUT").
			With("min_bytes", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	codec := &TokenCodec{
		key: key,
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}
	return codec, nil
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Encode issues a signed token for the subject carrying the given roles.
// Roles are sorted so identical role sets produce identical claims.
func (c *TokenCodec) Encode(subject string, roles []string) (string, error) {
	if subject == "" {
		return "", oops.Code("AUTH_INVALID_INPUT").Errorf("token subject cannot be empty")
	}
	normalized, err := NormalizeRoles(roles)
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Roles: normalized,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", oops.Code("AUTH_INTERNAL").
			With("operation", "sign token").
			Wrap(err)
	}
	return signed, nil
}

// Decode verifies the token signature and returns its claims. Verification
// fails closed: on any signature or structural failure no claim data is
// returned. Expiry is deliberately not checked here so that expired tokens
// can still be inspected; use IsExpired or Validate for the expiry decision.
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").
			With("operation", "parse token").
			Wrap(err)
	}
	if claims.Subject == "" {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Errorf("token has no subject")
	}
	if claims.ExpiresAt == nil {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Errorf("token has no expiry")
	}
	return &claims, nil
}

// IsExpired reports whether the claims are expired at the codec's current
// time. Deterministic given the injected clock.
func (c *TokenCodec) IsExpired(claims *Claims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return !c.now().Before(claims.ExpiresAt.Time)
}

// Validate reports whether the token verifies, carries the expected subject,
// and has not expired. This is the single authority downstream services use;
// the subject and expiry checks are not duplicated elsewhere.
func (c *TokenCodec) Validate(tokenString, expectedSubject string) bool {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject && !c.IsExpired(claims)
}
