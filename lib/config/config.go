// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the fleetmas
// client.
//
// Settings are loaded from a single YAML file specified by the
// FLEETMAS_CONFIG environment variable or a --config flag. There are
// no fallbacks or automatic discovery: one file, deterministic and
// auditable. The file may contain environment-specific sections
// (development, production) that override base values when the
// environment matches.
//
// Seed endpoints — the daemons the console connects to before
// discovery takes over — live in a separate JSONC file (endpoints.go)
// because operators annotate it by hand.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment type.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for deployed operator consoles.
	Production Environment = "production"
)

// Settings is the master configuration for the client.
type Settings struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Session configures per-endpoint session behavior.
	Session SessionSettings `yaml:"session"`

	// Nodes configures node list filtering.
	Nodes NodeSettings `yaml:"nodes"`

	// Cache configures the on-disk model snapshot cache.
	Cache CacheSettings `yaml:"cache"`

	// Overrides applied after the base settings are loaded, keyed by
	// Environment.
	Development *SettingsOverrides `yaml:"development,omitempty"`
	Production  *SettingsOverrides `yaml:"production,omitempty"`
}

// SettingsOverrides contains the sections that can be overridden per
// environment.
type SettingsOverrides struct {
	Session *SessionSettings `yaml:"session,omitempty"`
	Nodes   *NodeSettings    `yaml:"nodes,omitempty"`
	Cache   *CacheSettings   `yaml:"cache,omitempty"`
}

// Duration wraps time.Duration so settings files can use the
// human-readable "2s" / "500ms" forms; yaml.v3 only decodes integer
// nanoseconds into a bare time.Duration.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SessionSettings configures the dispatcher and state machine of each
// endpoint session.
type SessionSettings struct {
	// CallAttempts is the total attempt budget per remote call,
	// including the first attempt. Default: 3.
	CallAttempts int `yaml:"call_attempts"`

	// RetryDelay is the fixed delay between attempts. Default: 2s.
	RetryDelay Duration `yaml:"retry_delay"`

	// ExclusiveWait is how long a duplicate exclusive call waits for
	// the in-flight call before being rejected. Default: 1s.
	ExclusiveWait Duration `yaml:"exclusive_wait"`
}

// NodeSettings configures node list filtering during merges.
type NodeSettings struct {
	// Ignore lists fully-qualified node names excluded from the
	// model (the daemon's own infrastructure nodes, bag recorders).
	Ignore []string `yaml:"ignore"`

	// ShowRemote keeps nodes whose realm differs from the session's
	// own target runtime. Default: false.
	ShowRemote bool `yaml:"show_remote"`
}

// CacheSettings configures the snapshot cache.
type CacheSettings struct {
	// Dir is the snapshot directory. Empty disables caching.
	Dir string `yaml:"dir"`

	// Compression selects the snapshot compression: "none", "lz4",
	// or "zstd". Default: zstd.
	Compression string `yaml:"compression"`
}

// Default returns the base configuration merged under any loaded
// file. The values keep a client functional with an empty file; the
// settings file is still the source of truth for anything it sets.
func Default() *Settings {
	return &Settings{
		Environment: Development,
		Session: SessionSettings{
			CallAttempts:  3,
			RetryDelay:    Duration(2 * time.Second),
			ExclusiveWait: Duration(time.Second),
		},
		Cache: CacheSettings{
			Compression: "zstd",
		},
	}
}

// Load loads settings from the FLEETMAS_CONFIG environment variable.
// Fails when the variable is not set; use LoadFile with a flag-
// provided path instead.
func Load() (*Settings, error) {
	path := os.Getenv("FLEETMAS_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("FLEETMAS_CONFIG environment variable not set; " +
			"set it to the path of your fleetmas.yaml settings file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads settings from a specific file path and applies the
// matching environment override section.
func LoadFile(path string) (*Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	settings.applyEnvironmentOverrides()
	return settings, nil
}

// applyEnvironmentOverrides merges the section matching
// s.Environment over the base values.
func (s *Settings) applyEnvironmentOverrides() {
	var overrides *SettingsOverrides
	switch s.Environment {
	case Development:
		overrides = s.Development
	case Production:
		overrides = s.Production
	}
	if overrides == nil {
		return
	}
	if overrides.Session != nil {
		s.Session = *overrides.Session
	}
	if overrides.Nodes != nil {
		s.Nodes = *overrides.Nodes
	}
	if overrides.Cache != nil {
		s.Cache = *overrides.Cache
	}
}
