// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

// Package auth provides credential verification and access token issuance
// for the platform.
//
// # Domain Types
//
// Domain types should be created using their respective constructors:
//   - NewUser - creates a User with validated username and password hash
//   - NewTokenCodec - creates a TokenCodec with a validated signing key and TTL
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Authenticator - credential lookup and password verification
//   - SessionService - register, login, logout, token issuance
//
// Tokens are stateless: once issued they remain valid until natural expiry.
// Logout acknowledges the request without invalidating outstanding tokens;
// holders are expected to discard them.
package auth
