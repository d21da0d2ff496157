// Package auth holds account credentials for the identified channel.
package auth

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Credentials identifies one device of one account. The identified channel
// authenticates with these; the unidentified channel connects bare.
type Credentials struct {
	AccountID uuid.UUID // Account identifier
	DeviceID  int       // Linked-device index (1 = primary)
	Password  string    // Device password
}

// LoadCredentials builds credentials from config values. password may name
// an environment variable with the "env:" prefix.
func LoadCredentials(accountID string, deviceID int, password string) (*Credentials, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	if deviceID < 1 {
		return nil, fmt.Errorf("device id must be >= 1, got %d", deviceID)
	}

	if name, ok := strings.CutPrefix(password, "env:"); ok {
		password = os.Getenv(name)
	}
	if password == "" {
		return nil, fmt.Errorf("device password is required")
	}

	return &Credentials{
		AccountID: id,
		DeviceID:  deviceID,
		Password:  password,
	}, nil
}

// Username returns the wire login name: the account UUID, suffixed with the
// device index for linked devices.
func (c *Credentials) Username() string {
	if c.DeviceID == 1 {
		return c.AccountID.String()
	}
	return fmt.Sprintf("%s.%d", c.AccountID, c.DeviceID)
}

// BasicAuth returns the Authorization header value for the identified
// channel.
func (c *Credentials) BasicAuth() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.Username() + ":" + c.Password))
	return "Basic " + token
}
