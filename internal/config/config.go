// Package config defines and loads the gatewayd YAML configuration.
package config

import "time"

// Config is the root gatewayd configuration.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Service   ServiceConfig   `yaml:"service"`
	Health    HealthConfig    `yaml:"health"`
	Transport TransportConfig `yaml:"transport"`
	Journal   JournalConfig   `yaml:"journal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AccountConfig identifies the account session.
type AccountConfig struct {
	ID       string `yaml:"id"`        // Account UUID
	DeviceID int    `yaml:"device_id"` // Linked-device index (1 = primary)
	Password string `yaml:"password"`  // Device password, or "env:VAR"
}

// ServiceConfig holds the service endpoints.
type ServiceConfig struct {
	IdentifiedURL   string `yaml:"identified_url"`
	UnidentifiedURL string `yaml:"unidentified_url"`
}

// HealthConfig tunes the keep-alive engine.
type HealthConfig struct {
	// KeepAliveCadence is the probe interval, matching the service's
	// advertised keep-alive timeout. The staleness threshold is fixed at
	// three cadences.
	KeepAliveCadence time.Duration `yaml:"keepalive_cadence"`
}

// TransportConfig tunes the WebSocket pair.
type TransportConfig struct {
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	BufferSize      int           `yaml:"buffer_size"`
	StateBufferSize int           `yaml:"state_buffer_size"`
	RedialBaseWait  time.Duration `yaml:"redial_base_wait"`
	RedialMaxWait   time.Duration `yaml:"redial_max_wait"`
}

// JournalConfig configures the Postgres event journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig configures the metrics/diagnostics HTTP server.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
