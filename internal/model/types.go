// Package model holds event types shared between the router and the
// journal.
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a channel event.
type EventKind string

const (
	KindStateChange     EventKind = "state-change"
	KindKeepAliveSent   EventKind = "keepalive-sent"
	KindKeepAliveAck    EventKind = "keepalive-ack"
	KindForcedReconnect EventKind = "forced-reconnect"
	KindResponseError   EventKind = "response-error"
	KindMessage         EventKind = "message"
)

// ChannelEvent is one observed occurrence on the channel pair, as journaled.
type ChannelEvent struct {
	Account    uuid.UUID // Owning account session
	Channel    string    // "identified", "unidentified", or "" for pair-wide events
	Kind       EventKind // What happened
	State      string    // Connection state (state-change only)
	Status     int       // Response status (response-error only)
	OccurredAt time.Time // Local timestamp
}
