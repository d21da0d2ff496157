package transport

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrRunning       = errors.New("pair already running")
)

// Channel identifies one of the paired connections to the service.
type Channel int

const (
	// ChannelIdentified is the authenticated connection carrying
	// account-addressed traffic.
	ChannelIdentified Channel = iota

	// ChannelUnidentified is the anonymous connection carrying sealed
	// traffic.
	ChannelUnidentified
)

func (c Channel) String() string {
	switch c {
	case ChannelIdentified:
		return "identified"
	case ChannelUnidentified:
		return "unidentified"
	}
	return "unknown"
}

// State is the connection state of a single channel. Each channel's state
// stream delivers these in order with consecutive duplicates collapsed.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Envelope is the wire frame exchanged with the service.
type Envelope struct {
	Type   string          `json:"type"`
	ID     int64           `json:"id,omitempty"`
	Verb   string          `json:"verb,omitempty"`
	Path   string          `json:"path,omitempty"`
	Status int             `json:"status,omitempty"`
	SentAt int64           `json:"sent_at,omitempty"` // Unix milliseconds
	Body   json.RawMessage `json:"body,omitempty"`
}

// Envelope types.
const (
	EnvelopeRequest      = "request"
	EnvelopeResponse     = "response"
	EnvelopeKeepAlive    = "keepalive"
	EnvelopeKeepAliveAck = "keepalive-ack"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ChannelMessage is a data envelope delivered to the surrounding system,
// tagged with the channel it arrived on.
type ChannelMessage struct {
	Channel    Channel
	Envelope   Envelope
	ReceivedAt time.Time
}

// HealthSink receives liveness signals extracted from inbound traffic.
// The health monitor implements this.
type HealthSink interface {
	// OnKeepAliveResponse is invoked when a keep-alive acknowledgement
	// arrives on a channel. sentAt echoes the probe's send time.
	OnKeepAliveResponse(ch Channel, sentAt time.Time)

	// OnMessageError is invoked with the status code of a failed
	// response envelope.
	OnMessageError(ch Channel, status int)
}

// ClientConfig configures a single WebSocket channel client.
type ClientConfig struct {
	URL           string        // WebSocket URL
	Authorization string        // Authorization header value ("" = anonymous)
	WriteTimeout  time.Duration // Write deadline for sends
	BufferSize    int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 10 * time.Second,
		BufferSize:   1024,
	}
}

// PairConfig configures the paired-channel transport.
type PairConfig struct {
	IdentifiedURL   string        // Endpoint for the identified channel
	UnidentifiedURL string        // Endpoint for the unidentified channel
	Authorization   string        // Basic auth header for the identified channel
	WriteTimeout    time.Duration // Write deadline for sends
	BufferSize      int           // Per-client inbound buffer size
	StateBufferSize int           // Per-channel state stream buffer size
	RedialBaseWait  time.Duration // Initial redial backoff
	RedialMaxWait   time.Duration // Backoff ceiling
}

// DefaultPairConfig returns sensible defaults.
func DefaultPairConfig() PairConfig {
	return PairConfig{
		WriteTimeout:    10 * time.Second,
		BufferSize:      1024,
		StateBufferSize: 16,
		RedialBaseWait:  time.Second,
		RedialMaxWait:   time.Minute,
	}
}
