package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultKeepAliveCadence = 55 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultBufferSize       = 1024
	DefaultStateBufferSize  = 16
	DefaultRedialBaseWait   = 1 * time.Second
	DefaultRedialMaxWait    = 60 * time.Second
	DefaultDeviceID         = 1
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 100
	DefaultFlushInterval    = 5 * time.Second
	DefaultJournalBuffer    = 1024
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *Config) applyDefaults() {
	// Account defaults
	if c.Account.DeviceID == 0 {
		c.Account.DeviceID = DefaultDeviceID
	}

	// Health defaults
	if c.Health.KeepAliveCadence == 0 {
		c.Health.KeepAliveCadence = DefaultKeepAliveCadence
	}

	// Transport defaults
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultBufferSize
	}
	if c.Transport.StateBufferSize == 0 {
		c.Transport.StateBufferSize = DefaultStateBufferSize
	}
	if c.Transport.RedialBaseWait == 0 {
		c.Transport.RedialBaseWait = DefaultRedialBaseWait
	}
	if c.Transport.RedialMaxWait == 0 {
		c.Transport.RedialMaxWait = DefaultRedialMaxWait
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBuffer
	}
	applyDBDefaults(&c.Journal.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
