// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Restro Labs Contributors

// Package config loads service configuration from YAML files, environment
// variables, and command-line flags.
package config

import (
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/restrolabs/identity/internal/auth"
	"github.com/restrolabs/identity/internal/xdg"
)

// Environment variables consulted in addition to the config file. The signing
// key deliberately has no file-committable default; it comes from the
// environment or a secret mount.
const (
	EnvDatabaseURL    = "DATABASE_URL"
	EnvSigningKey     = "IDENTITY_SIGNING_KEY"
	EnvSigningKeyFile = "IDENTITY_SIGNING_KEY_FILE"
)

// Config is the resolved service configuration. SigningKey is immutable for
// the process lifetime and is never logged or echoed back.
type Config struct {
	DatabaseURL       string
	SigningKey        []byte
	TokenTTL          time.Duration
	LogFormat         string
	APIAddr           string
	ObservabilityAddr string
}

// Load resolves configuration with the precedence: defaults, then the YAML
// file at path (optional; empty path falls back to the XDG config file when
// one exists), then flags. The signing key is read from IDENTITY_SIGNING_KEY
// (hex or raw), IDENTITY_SIGNING_KEY_FILE, or the signing_key config key, in
// that order.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		if candidate := xdg.ConfigFile(); fileExists(candidate) {
			path = candidate
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := &Config{
		DatabaseURL:       k.String("database_url"),
		TokenTTL:          k.Duration("token_ttl"),
		LogFormat:         k.String("log.format"),
		APIAddr:           k.String("api.addr"),
		ObservabilityAddr: k.String("observability.addr"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = auth.DefaultTokenTTL
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = ":8080"
	}
	if cfg.ObservabilityAddr == "" {
		cfg.ObservabilityAddr = ":9090"
	}

	key, err := loadSigningKey(k)
	if err != nil {
		return nil, err
	}
	cfg.SigningKey = key

	return cfg, nil
}

// RequireSigningKey returns the signing key, or an error when none was
// configured. Commands that never touch tokens (e.g., migrations) load
// configuration without it.
func (c *Config) RequireSigningKey() ([]byte, error) {
	if len(c.SigningKey) == 0 {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("signing key is required: set %s or %s", EnvSigningKey, EnvSigningKeyFile)
	}
	return c.SigningKey, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadSigningKey resolves the signing key material. Hex-encoded values are
// decoded; anything else is taken as raw bytes.
func loadSigningKey(k *koanf.Koanf) ([]byte, error) {
	raw := os.Getenv(EnvSigningKey)

	if raw == "" {
		if keyFile := os.Getenv(EnvSigningKeyFile); keyFile != "" {
			data, err := os.ReadFile(keyFile)
			if err != nil {
				return nil, oops.Code("CONFIG_INVALID").
					With("operation", "read signing key file").
					Wrap(err)
			}
			raw = strings.TrimSpace(string(data))
		}
	}
	if raw == "" {
		raw = k.String("signing_key")
	}
	if raw == "" {
		// Absence is legal at load time; RequireSigningKey enforces presence
		// for the operations that need key material.
		return nil, nil
	}

	key := []byte(raw)
	if decoded, err := hex.DecodeString(raw); err == nil {
		key = decoded
	}
	if len(key) < auth.MinSigningKeyLength {
		return nil, oops.Code("CONFIG_INVALID").
			With("min_bytes", auth.MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", auth.MinSigningKeyLength)
	}
	return key, nil
}
