// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (see LoadWithKoanf):
//  1. Defaults
//  2. Optional YAML config file
//  3. .env file, then environment variables
//
// Config is immutable after loading and safe for concurrent reads.
type Config struct {
	// Identity is the watched user. It is a deployment constant shared by
	// both channels.
	Identity   string           `koanf:"identity" validate:"required"`
	Gateway    GatewayConfig    `koanf:"gateway"`
	Presence   PresenceConfig   `koanf:"presence"`
	Store      StoreConfig      `koanf:"store"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	NATS       NATSConfig       `koanf:"nats"`
	DBus       DBusConfig       `koanf:"dbus"`
	Supervisor SupervisorConfig `koanf:"supervisor"`

	// SourcePath is the config file that was loaded, if any.
	SourcePath string `koanf:"-"`
}

// GatewayConfig configures the push channel.
type GatewayConfig struct {
	URL              string        `koanf:"url" validate:"required,wsurl"`
	RetryDelay       time.Duration `koanf:"retry_delay" validate:"gte=100ms"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gte=1s"`
	WriteTimeout     time.Duration `koanf:"write_timeout" validate:"gte=100ms"`

	// DefaultHeartbeat is used when the hello frame carries no usable interval.
	DefaultHeartbeat time.Duration `koanf:"default_heartbeat" validate:"gte=1s"`
}

// PresenceConfig configures the pull channel.
type PresenceConfig struct {
	URL          string        `koanf:"url" validate:"required,http_url"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gte=1s"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=100ms"`
}

// StoreConfig configures the last-snapshot cache.
type StoreConfig struct {
	Type string `koanf:"type" validate:"oneof=memory badger"`
	Path string `koanf:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level      string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format     string `koanf:"format" validate:"oneof=json console"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

// NATSConfig configures the optional state-change publisher.
type NATSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"gte=-1,max=65535"`
	Subject  string `koanf:"subject"`
}

// DBusConfig configures the Linux host signal watcher.
type DBusConfig struct {
	Enabled bool `koanf:"enabled"`
}

// SupervisorConfig configures the suture supervision tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
