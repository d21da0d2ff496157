package health

import (
	"errors"
	"testing"
	"time"

	"github.com/chatwire/gateway/internal/transport"
)

func setNeedsKeepAlive(m *Monitor, ch transport.Channel, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthFor(ch).needsKeepAlive = v
}

func TestKeepAliveSender_ProbesWhileFresh(t *testing.T) {
	m, cmd, mck := newTestMonitor()
	setNeedsKeepAlive(m, transport.ChannelIdentified, true)
	setNeedsKeepAlive(m, transport.ChannelUnidentified, true)

	s := newKeepAliveSender(m)
	s.begin()

	mck.Add(10 * time.Second)
	if !s.tick() {
		t.Fatal("tick = false, want true")
	}

	ka, rc := cmd.counts()
	if ka != 1 || rc != 0 {
		t.Fatalf("keepalives=%d reconnects=%d, want 1/0", ka, rc)
	}
}

func TestKeepAliveSender_ReconnectsWhenStale(t *testing.T) {
	m, cmd, mck := newTestMonitor()
	setNeedsKeepAlive(m, transport.ChannelIdentified, true)
	setNeedsKeepAlive(m, transport.ChannelUnidentified, true)

	s := newKeepAliveSender(m)
	s.begin()

	// Three cadences with no acknowledgement are still within tolerance.
	for i := 0; i < 3; i++ {
		mck.Add(10 * time.Second)
		if !s.tick() {
			t.Fatalf("tick %d = false, want true", i+1)
		}
	}
	ka, rc := cmd.counts()
	if ka != 3 || rc != 0 {
		t.Fatalf("keepalives=%d reconnects=%d after 3 cadences, want 3/0", ka, rc)
	}

	// The fourth missed cadence crosses the threshold: one forced
	// reconnect, no probe.
	mck.Add(10 * time.Second)
	s.tick()
	ka, rc = cmd.counts()
	if ka != 3 || rc != 1 {
		t.Fatalf("keepalives=%d reconnects=%d after staleness, want 3/1", ka, rc)
	}
}

func TestKeepAliveSender_OneChannelNeverConnected(t *testing.T) {
	m, cmd, mck := newTestMonitor()
	// Only the identified channel needs keep-alive; the other never
	// connected and is irrelevant to staleness since begin() reset it.
	setNeedsKeepAlive(m, transport.ChannelIdentified, true)

	s := newKeepAliveSender(m)
	s.begin()

	mck.Add(10 * time.Second)
	if !s.tick() {
		t.Fatal("tick = false, want true")
	}

	ka, rc := cmd.counts()
	if ka != 1 || rc != 0 {
		t.Fatalf("keepalives=%d reconnects=%d, want probe without reconnect", ka, rc)
	}
}

func TestKeepAliveSender_AckExtendsLiveness(t *testing.T) {
	m, cmd, mck := newTestMonitor()
	setNeedsKeepAlive(m, transport.ChannelIdentified, true)
	setNeedsKeepAlive(m, transport.ChannelUnidentified, true)

	s := newKeepAliveSender(m)
	s.begin()

	mck.Add(30 * time.Second)
	s.tick() // still at the threshold boundary: probes

	// Both channels acknowledge; liveness is refreshed from now.
	m.OnKeepAliveResponse(transport.ChannelIdentified, mck.Now())
	m.OnKeepAliveResponse(transport.ChannelUnidentified, mck.Now())

	mck.Add(10 * time.Second)
	if !s.tick() {
		t.Fatal("tick = false, want true")
	}

	ka, rc := cmd.counts()
	if ka != 2 || rc != 0 {
		t.Fatalf("keepalives=%d reconnects=%d, want 2/0 after acks", ka, rc)
	}
}

func TestKeepAliveSender_OneStaleChannelReconnectsBoth(t *testing.T) {
	m, cmd, mck := newTestMonitor()
	setNeedsKeepAlive(m, transport.ChannelIdentified, true)
	setNeedsKeepAlive(m, transport.ChannelUnidentified, true)

	s := newKeepAliveSender(m)
	s.begin()

	// Only the identified channel keeps acknowledging.
	for i := 0; i < 4; i++ {
		mck.Add(10 * time.Second)
		m.OnKeepAliveResponse(transport.ChannelIdentified, mck.Now())
		s.tick()
	}

	// The silent unidentified channel drags the whole pair down.
	if _, rc := cmd.counts(); rc != 1 {
		t.Fatalf("reconnects = %d, want 1 (pair reconnect on one-sided staleness)", rc)
	}
}

func TestKeepAliveSender_SwallowsCommandErrors(t *testing.T) {
	m, cmd, mck := newTestMonitor()
	cmd.keepAliveErr = errors.New("send failed")
	cmd.reconnectErr = errors.New("reconnect failed")

	setNeedsKeepAlive(m, transport.ChannelIdentified, true)

	s := newKeepAliveSender(m)
	s.begin()

	// Probe failure must not terminate the loop.
	mck.Add(10 * time.Second)
	if !s.tick() {
		t.Fatal("tick after failed probe = false, want true")
	}

	// Neither must a reconnect failure.
	mck.Add(40 * time.Second)
	if !s.tick() {
		t.Fatal("tick after failed reconnect = false, want true")
	}

	ka, rc := cmd.counts()
	if ka != 1 || rc != 1 {
		t.Fatalf("keepalives=%d reconnects=%d, want 1/1", ka, rc)
	}
}

func TestKeepAliveSender_ExitsWhenUnnecessary(t *testing.T) {
	m, cmd, mck := newTestMonitor()

	s := newKeepAliveSender(m)
	s.begin()

	mck.Add(10 * time.Second)
	if s.tick() {
		t.Fatal("tick = true with no channel needing keep-alive")
	}
	if ka, rc := cmd.counts(); ka != 0 || rc != 0 {
		t.Fatalf("commands issued: keepalives=%d reconnects=%d, want none", ka, rc)
	}
}

func TestKeepAliveSender_ExitsOnStop(t *testing.T) {
	m, _, _ := newTestMonitor()
	setNeedsKeepAlive(m, transport.ChannelIdentified, true)

	s := newKeepAliveSender(m)
	s.begin()
	s.stop()
	s.stop() // idempotent

	if s.tick() {
		t.Fatal("tick = true after stop")
	}
}
