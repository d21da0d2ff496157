package health

import (
	"sync"

	"github.com/chatwire/gateway/internal/metrics"
)

// keepAliveSender is the background loop that enforces liveness while at
// least one channel is connected. At most one exists per monitor; the
// monitor holds the only reference and is the only entity that starts or
// stops it. Cancellation is cooperative: it is observed at the next
// suspension boundary or check point, never mid-call.
type keepAliveSender struct {
	m        *Monitor
	done     chan struct{}
	stopOnce sync.Once
}

func newKeepAliveSender(m *Monitor) *keepAliveSender {
	return &keepAliveSender{
		m:    m,
		done: make(chan struct{}),
	}
}

// start launches the sender loop.
func (s *keepAliveSender) start() {
	go s.run()
}

func (s *keepAliveSender) run() {
	s.begin()

	for {
		t := s.m.clock.Timer(s.m.cadence)
		select {
		case <-s.done:
			t.Stop()
			return
		case <-t.C:
		}

		if !s.tick() {
			return
		}
	}
}

// begin resets both channels' liveness to now, so staleness is never
// declared from state predating the sender.
func (s *keepAliveSender) begin() {
	m := s.m

	now := m.clock.Now()
	m.mu.Lock()
	m.identified.lastKeepAliveReceived = now
	m.unidentified.lastKeepAliveReceived = now
	m.mu.Unlock()

	m.logger.Debug("keep-alive sender started", "cadence", m.cadence)
}

// tick performs one liveness evaluation: if either channel has gone without
// an acknowledgement past the tolerance threshold, both channels are forced
// to reconnect; otherwise a probe is sent. Probe and reconnect failures are
// logged and swallowed so a transient error never silently stops
// enforcement. Returns false when the sender should exit.
func (s *keepAliveSender) tick() bool {
	m := s.m

	select {
	case <-s.done:
		return false
	default:
	}

	m.mu.Lock()
	necessary := m.identified.needsKeepAlive || m.unidentified.needsKeepAlive
	identifiedLast := m.identified.lastKeepAliveReceived
	unidentifiedLast := m.unidentified.lastKeepAliveReceived
	m.mu.Unlock()

	if !necessary {
		return false
	}

	deadline := m.clock.Now().Add(-staleMultiplier * m.cadence)
	if identifiedLast.Before(deadline) || unidentifiedLast.Before(deadline) {
		m.logger.Warn("missed keep-alives, forcing new connections",
			"identified_last", identifiedLast,
			"unidentified_last", unidentifiedLast,
			"deadline", deadline,
		)
		metrics.ForcedReconnects.WithLabelValues("stale").Inc()
		if err := m.commander.ForceReconnectAll(); err != nil {
			m.logger.Warn("force reconnect failed", "error", err)
		}
	} else if err := m.commander.SendKeepAlive(); err != nil {
		m.logger.Warn("keep-alive send failed", "error", err)
	}

	return true
}

// stop requests cancellation.
func (s *keepAliveSender) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
