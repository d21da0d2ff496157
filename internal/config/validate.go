package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validate checks the configuration for errors. Defaults must already be
// applied.
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("account.id is required")
	}
	if _, err := uuid.Parse(c.Account.ID); err != nil {
		return fmt.Errorf("account.id: %w", err)
	}
	if c.Account.DeviceID < 1 {
		return fmt.Errorf("account.device_id must be >= 1, got %d", c.Account.DeviceID)
	}
	if c.Account.Password == "" {
		return fmt.Errorf("account.password is required")
	}

	if err := validateWSURL("service.identified_url", c.Service.IdentifiedURL); err != nil {
		return err
	}
	if err := validateWSURL("service.unidentified_url", c.Service.UnidentifiedURL); err != nil {
		return err
	}

	if c.Health.KeepAliveCadence <= 0 {
		return fmt.Errorf("health.keepalive_cadence must be positive")
	}

	if c.Transport.RedialBaseWait > c.Transport.RedialMaxWait {
		return fmt.Errorf("transport.redial_base_wait exceeds redial_max_wait")
	}

	if c.Journal.Enabled {
		db := c.Journal.Database
		if db.Host == "" {
			return fmt.Errorf("journal.database.host is required when the journal is enabled")
		}
		if db.Name == "" {
			return fmt.Errorf("journal.database.name is required when the journal is enabled")
		}
		if db.User == "" {
			return fmt.Errorf("journal.database.user is required when the journal is enabled")
		}
		if db.MinConns > db.MaxConns {
			return fmt.Errorf("journal.database.min_conns exceeds max_conns")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}

	return nil
}

func validateWSURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !strings.HasPrefix(value, "ws://") && !strings.HasPrefix(value, "wss://") {
		return fmt.Errorf("%s must be a ws:// or wss:// URL", field)
	}
	return nil
}
