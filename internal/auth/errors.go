// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint (username, email,
// phone number) is violated during persistence.
var ErrDuplicate = errors.New("duplicate entity")
