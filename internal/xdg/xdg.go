// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

// Package xdg provides XDG Base Directory paths for the identity service.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "identity"

// ConfigDir returns the XDG config directory for identity.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the path of the default config file inside ConfigDir.
// Existence is not checked; callers decide whether a missing file matters.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "identity.yaml")
}
