// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package config loads layered configuration: struct defaults, then an
// optional YAML file, then OSIRIS_-prefixed environment variables.
// Precedence: ENV > file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/osiris/config.yaml",
	"/etc/osiris/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "OSIRIS_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them to
// koanf paths: OSIRIS_UPSTREAM_BASE_URL -> upstream.base_url.
const envPrefix = "OSIRIS_"

// Config is the full process configuration.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Store    StoreConfig    `koanf:"store"`
	Feed     FeedConfig     `koanf:"feed"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// UpstreamConfig points at the aggregator being reconciled.
type UpstreamConfig struct {
	// BaseURL is the aggregator's HTTP base (scheme://host) for snapshot
	// fetches and opaque proxies.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// PushURL is the push-channel websocket endpoint (ws:// or wss://).
	PushURL string `koanf:"push_url" validate:"required"`

	FetchInterval  time.Duration `koanf:"fetch_interval" validate:"gt=0"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	SnapshotLimit  int           `koanf:"snapshot_limit" validate:"gt=0,lte=5000"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay" validate:"gt=0"`
	ProxyTimeout   time.Duration `koanf:"proxy_timeout" validate:"gt=0"`
}

// StoreConfig bounds the reconciled working set.
type StoreConfig struct {
	Capacity int `koanf:"capacity" validate:"gt=0"`
}

// FeedConfig bounds the burst feed.
type FeedConfig struct {
	MaxRows int `koanf:"max_rows" validate:"gt=0"`
}

// ServerConfig is the consumer HTTP surface.
type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port" validate:"gt=0,lte=65535"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	RateLimitRequests  int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:        "http://localhost:8000",
			PushURL:        "ws://localhost:8000/ws",
			FetchInterval:  5 * time.Minute,
			FetchTimeout:   30 * time.Second,
			SnapshotLimit:  5000,
			ReconnectDelay: 5 * time.Second,
			ProxyTimeout:   15 * time.Second,
		},
		Store: StoreConfig{
			Capacity: 10000,
		},
		Feed: FeedConfig{
			MaxRows: 80,
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ShutdownTimeout:    10 * time.Second,
			CORSAllowedOrigins: []string{},
			RateLimitRequests:  300,
			RateLimitWindow:    time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, optional YAML file, and
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps OSIRIS_SECTION_FIELD_NAME to section.field_name.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 2 {
		return parts[0] + "." + parts[1]
	}
	return s
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks tag constraints plus the push URL scheme.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Upstream.PushURL, "ws://") && !strings.HasPrefix(c.Upstream.PushURL, "wss://") {
		return fmt.Errorf("upstream.push_url must use ws:// or wss://, got %q", c.Upstream.PushURL)
	}
	return nil
}
