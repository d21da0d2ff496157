package health

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/chatwire/gateway/internal/metrics"
	"github.com/chatwire/gateway/internal/transport"
)

// ErrAlreadyMonitoring is returned when Attach is called more than once.
var ErrAlreadyMonitoring = errors.New("monitor already attached")

const (
	// DefaultCadence matches the service's advertised keep-alive timeout.
	DefaultCadence = 55 * time.Second

	// staleMultiplier sets the liveness tolerance: one missed beat is not
	// failure, three consecutive missed cadences with no acknowledgement
	// from either channel is.
	staleMultiplier = 3

	// mismatchStatus is the single tracked error condition: the service
	// reporting a device/session mismatch on a message.
	mismatchStatus = http.StatusConflict

	mismatchCapacity = 5
	mismatchWindow   = time.Minute
)

// Commander is the subset of the transport the monitor drives. Both
// operations are fire-and-forget and safe to invoke repeatedly.
type Commander interface {
	SendKeepAlive() error
	ForceReconnectAll() error
}

// StateListener receives every raw state transition before the monitor acts
// on it, for routing and journaling. Invoked inside the monitor's critical
// section; must not call back into the monitor.
type StateListener func(ch transport.Channel, st transport.State)

// channelHealth is the per-channel liveness record. Mutated only under the
// monitor's lock; the tracker carries its own lock since it is fed from the
// error-notification path.
type channelHealth struct {
	needsKeepAlive        bool
	lastKeepAliveReceived time.Time
	mismatchErrors        *errorTracker
}

// Monitor supervises the liveness of the channel pair.
type Monitor struct {
	logger    *slog.Logger
	clock     clock.Clock
	commander Commander
	listener  StateListener
	cadence   time.Duration
	account   uuid.UUID

	mu           sync.Mutex
	attached     bool
	identified   channelHealth
	unidentified channelHealth
	sender       *keepAliveSender

	wg sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithClock sets the time source. Tests pass a mock.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithCadence sets the keep-alive interval.
func WithCadence(d time.Duration) Option {
	return func(m *Monitor) {
		m.cadence = d
	}
}

// WithStateListener sets the raw state-transition callback.
func WithStateListener(l StateListener) Option {
	return func(m *Monitor) {
		m.listener = l
	}
}

// NewMonitor creates a monitor for one account session.
func NewMonitor(account uuid.UUID, commander Commander, opts ...Option) *Monitor {
	m := &Monitor{
		logger:    slog.Default(),
		clock:     clock.New(),
		commander: commander,
		cadence:   DefaultCadence,
		account:   account,
	}
	m.identified.mismatchErrors = newErrorTracker(mismatchCapacity, mismatchWindow)
	m.unidentified.mismatchErrors = newErrorTracker(mismatchCapacity, mismatchWindow)

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("account", m.account)

	return m
}

// Attach begins observing both channel state streams. Callable exactly once
// per monitor; each stream must deliver states in order with consecutive
// duplicates collapsed.
func (m *Monitor) Attach(identified, unidentified <-chan transport.State) error {
	m.mu.Lock()
	if m.attached {
		m.mu.Unlock()
		return ErrAlreadyMonitoring
	}
	m.attached = true
	m.mu.Unlock()

	m.wg.Add(2)
	go m.watch(transport.ChannelIdentified, identified)
	go m.watch(transport.ChannelUnidentified, unidentified)
	return nil
}

// watch drains one channel's state stream until the transport closes it.
func (m *Monitor) watch(ch transport.Channel, states <-chan transport.State) {
	defer m.wg.Done()
	for st := range states {
		m.onStateChange(ch, st)
	}
}

// onStateChange handles one distinct state transition. Events from both
// streams serialize through the monitor lock so that the sender start/stop
// decision is always computed from a consistent snapshot.
func (m *Monitor) onStateChange(ch transport.Channel, st transport.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("channel state", "channel", ch, "state", st)

	if m.listener != nil {
		m.listener(ch, st)
	}

	m.healthFor(ch).needsKeepAlive = st == transport.StateConnected

	necessary := m.identified.needsKeepAlive || m.unidentified.needsKeepAlive
	if m.sender == nil && necessary {
		m.sender = newKeepAliveSender(m)
		m.sender.start()
	} else if m.sender != nil && !necessary {
		m.sender.stop()
		m.sender = nil
	}
}

// OnKeepAliveResponse records a keep-alive acknowledgement on a channel. A
// late or reordered acknowledgement simply refreshes liveness; sentAt is
// informational.
func (m *Monitor) OnKeepAliveResponse(ch transport.Channel, sentAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthFor(ch).lastKeepAliveReceived = m.clock.Now()
}

// OnMessageError feeds a response status into the mismatch tracker. When a
// channel bursts mismatch errors past the window capacity, both channels are
// forced to reconnect. All other statuses are ignored here.
func (m *Monitor) OnMessageError(ch transport.Channel, status int) {
	if status != mismatchStatus {
		return
	}

	tracker := m.trackerFor(ch)
	if tracker.addSample(m.clock.Now()) {
		m.logger.Warn("too many device mismatch errors, forcing new connections",
			"channel", ch,
		)
		metrics.ForcedReconnects.WithLabelValues("mismatch").Inc()
		if err := m.commander.ForceReconnectAll(); err != nil {
			m.logger.Warn("force reconnect failed", "error", err)
		}
	}
}

// KeepAliveNecessary reports whether any channel currently requires
// keep-alive enforcement.
func (m *Monitor) KeepAliveNecessary() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identified.needsKeepAlive || m.unidentified.needsKeepAlive
}

// Stop cancels the keep-alive sender, if running, and waits for the stream
// watchers to finish. The transport must close the state streams first.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.sender != nil {
		m.sender.stop()
		m.sender = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Stats is a diagnostic snapshot of the monitor.
type Stats struct {
	IdentifiedNeedsKeepAlive   bool
	UnidentifiedNeedsKeepAlive bool
	IdentifiedLastAck          time.Time
	UnidentifiedLastAck        time.Time
	SenderRunning              bool
}

// Snapshot returns current liveness state for diagnostics.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		IdentifiedNeedsKeepAlive:   m.identified.needsKeepAlive,
		UnidentifiedNeedsKeepAlive: m.unidentified.needsKeepAlive,
		IdentifiedLastAck:          m.identified.lastKeepAliveReceived,
		UnidentifiedLastAck:        m.unidentified.lastKeepAliveReceived,
		SenderRunning:              m.sender != nil,
	}
}

// healthFor returns the record for a channel. Caller holds m.mu.
func (m *Monitor) healthFor(ch transport.Channel) *channelHealth {
	if ch == transport.ChannelIdentified {
		return &m.identified
	}
	return &m.unidentified
}

// trackerFor returns a channel's mismatch tracker. The tracker pointers are
// set once at construction, so no monitor lock is needed.
func (m *Monitor) trackerFor(ch transport.Channel) *errorTracker {
	if ch == transport.ChannelIdentified {
		return m.identified.mismatchErrors
	}
	return m.unidentified.mismatchErrors
}
