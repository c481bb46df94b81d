// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

// Package errutil provides helpers for logging and asserting oops errors.
package errutil

import (
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"

// sensitiveMarkers flags attribute keys whose values are credential
// material. Raw secrets must never reach a log line, whatever path they
// take to get there.
var sensitiveMarkers = []string{"password", "secret", "signing_key"}

// IsSensitiveKey reports whether a log attribute key names secret material.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context,
// with secret-bearing context keys redacted.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", scrubContext(ctx))
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// scrubContext replaces values under sensitive keys so a misplaced
// oops.With never leaks a credential.
func scrubContext(ctx map[string]any) map[string]any {
	scrubbed := make(map[string]any, len(ctx))
	for key, value := range ctx {
		if IsSensitiveKey(key) {
			scrubbed[key] = Redacted
			continue
		}
		scrubbed[key] = value
	}
	return scrubbed
}
