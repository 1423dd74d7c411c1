// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

// Package config loads and validates the client configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config is the top-level configuration for an ember session.
type Config struct {
	Homeserver Homeserver `yaml:"homeserver"`
	Account    Account    `yaml:"account"`
	Sync       Sync       `yaml:"sync"`
	Encryption Encryption `yaml:"encryption"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Homeserver describes where to reach the server.
type Homeserver struct {
	// Base URL of the homeserver, e.g. https://matrix.example.org
	URL string `yaml:"url"`
	// Server name used when building user IDs from a bare localpart.
	ServerName string `yaml:"server_name"`
}

// Account holds login material.
type Account struct {
	// User localpart or full user ID.
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Where to persist the access token and device ID between runs.
	TokenFile string `yaml:"token_file"`
	// Display name advertised for the device at login.
	DeviceDisplayName string `yaml:"device_display_name"`
}

// Sync tunes the long-poll loop.
type Sync struct {
	// Long-poll timeout for each /sync request.
	TimeoutMS int `yaml:"timeout_ms"`
	// Local sleep between sync cycles, as a duration
	// string such as "5s".
	PollInterval string `yaml:"poll_interval"`
}

// PollDuration returns the parsed poll interval. Verify has already
// checked that the string parses.
func (s *Sync) PollDuration() time.Duration {
	d, err := time.ParseDuration(s.PollInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Encryption tunes outbound group session rotation.
type Encryption struct {
	// Replace the outbound session after this many messages.
	RotationMessages int `yaml:"rotation_messages"`
	// Replace the outbound session after this much wall time.
	RotationPeriodMS int64 `yaml:"rotation_period_ms"`
}

// Metrics controls the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Defaults sets sane values for everything that may be omitted.
func (c *Config) Defaults() {
	c.Account.TokenFile = "ember-token.json"
	c.Account.DeviceDisplayName = "ember"
	c.Sync.TimeoutMS = 30000
	c.Sync.PollInterval = "5s"
	c.Encryption.RotationMessages = 100
	c.Encryption.RotationPeriodMS = 604800000
	c.Metrics.Enabled = false
	c.Metrics.Listen = "localhost:9092"
}

// ConfigErrors collects problems found during Verify so the user sees
// all of them at once.
type ConfigErrors []string

func (errs *ConfigErrors) Add(str string) {
	*errs = append(*errs, str)
}

func (errs ConfigErrors) Error() string {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Sprintf("%s (and %d other problems)", errs[0], len(errs)-1)
}

// Verify checks the configuration, appending every problem found.
func (c *Config) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "homeserver.url", c.Homeserver.URL)
	if c.Homeserver.URL != "" {
		if _, err := url.Parse(c.Homeserver.URL); err != nil {
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: %s", "homeserver.url", err))
		}
	}
	checkNotEmpty(configErrs, "homeserver.server_name", c.Homeserver.ServerName)
	checkNotEmpty(configErrs, "account.user", c.Account.User)
	checkNotEmpty(configErrs, "account.token_file", c.Account.TokenFile)
	checkPositive(configErrs, "sync.timeout_ms", int64(c.Sync.TimeoutMS))
	if c.Sync.PollInterval != "" {
		if _, err := time.ParseDuration(c.Sync.PollInterval); err != nil {
			configErrs.Add(fmt.Sprintf("invalid duration for config key %q: %s", "sync.poll_interval", c.Sync.PollInterval))
		}
	}
	checkPositive(configErrs, "encryption.rotation_messages", int64(c.Encryption.RotationMessages))
	checkPositive(configErrs, "encryption.rotation_period_ms", c.Encryption.RotationPeriodMS)
	if c.Metrics.Enabled {
		checkNotEmpty(configErrs, "metrics.listen", c.Metrics.Listen)
	}
}

// Load reads a YAML config file, applies defaults for omitted keys and
// verifies the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	return loadConfig(data)
}

func loadConfig(data []byte) (*Config, error) {
	var cfg Config
	cfg.Defaults()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	var configErrs ConfigErrors
	cfg.Verify(&configErrs)
	if len(configErrs) > 0 {
		return nil, configErrs
	}
	return &cfg, nil
}

func checkNotEmpty(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

func checkPositive(configErrs *ConfigErrors, key string, value int64) {
	if value <= 0 {
		configErrs.Add(fmt.Sprintf("invalid value for config key %q: %d", key, value))
	}
}
