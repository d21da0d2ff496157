package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatwire/gateway/internal/health"
	"github.com/chatwire/gateway/internal/model"
	"github.com/chatwire/gateway/internal/transport"
)

// Dispatcher sits between the transport pair and the health monitor. It
// passes liveness signals and commands through unchanged while recording
// each occurrence as a ChannelEvent for the journal.
//
// Wiring: the pair's health sink is the dispatcher, which forwards to the
// monitor; the monitor's commander is the dispatcher, which forwards to the
// pair.
type Dispatcher struct {
	logger  *slog.Logger
	account uuid.UUID
	events  *Buffer[model.ChannelEvent] // nil when journaling is disabled

	sink      transport.HealthSink
	commander health.Commander
}

// NewDispatcher creates a dispatcher. events may be nil to disable
// recording.
func NewDispatcher(account uuid.UUID, events *Buffer[model.ChannelEvent], logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:  logger,
		account: account,
		events:  events,
	}
}

// Bind installs the forwarding targets. Must be called before traffic flows.
func (d *Dispatcher) Bind(sink transport.HealthSink, commander health.Commander) {
	d.sink = sink
	d.commander = commander
}

// OnChannelState implements health.StateListener.
func (d *Dispatcher) OnChannelState(ch transport.Channel, st transport.State) {
	d.record(model.ChannelEvent{
		Channel: ch.String(),
		Kind:    model.KindStateChange,
		State:   st.String(),
	})
}

// OnKeepAliveResponse implements transport.HealthSink.
func (d *Dispatcher) OnKeepAliveResponse(ch transport.Channel, sentAt time.Time) {
	d.record(model.ChannelEvent{
		Channel: ch.String(),
		Kind:    model.KindKeepAliveAck,
	})
	if d.sink != nil {
		d.sink.OnKeepAliveResponse(ch, sentAt)
	}
}

// OnMessageError implements transport.HealthSink.
func (d *Dispatcher) OnMessageError(ch transport.Channel, status int) {
	d.record(model.ChannelEvent{
		Channel: ch.String(),
		Kind:    model.KindResponseError,
		Status:  status,
	})
	if d.sink != nil {
		d.sink.OnMessageError(ch, status)
	}
}

// SendKeepAlive implements health.Commander.
func (d *Dispatcher) SendKeepAlive() error {
	d.record(model.ChannelEvent{
		Kind: model.KindKeepAliveSent,
	})
	return d.commander.SendKeepAlive()
}

// ForceReconnectAll implements health.Commander.
func (d *Dispatcher) ForceReconnectAll() error {
	d.record(model.ChannelEvent{
		Kind: model.KindForcedReconnect,
	})
	return d.commander.ForceReconnectAll()
}

// Run drains the pair's data messages, recording one event per envelope,
// until the stream closes or ctx is cancelled. Payload routing to clients
// lives elsewhere; the dispatcher only observes.
func (d *Dispatcher) Run(ctx context.Context, messages <-chan transport.ChannelMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			d.record(model.ChannelEvent{
				Channel: msg.Channel.String(),
				Kind:    model.KindMessage,
				Status:  msg.Envelope.Status,
			})
		}
	}
}

func (d *Dispatcher) record(ev model.ChannelEvent) {
	if d.events == nil {
		return
	}
	ev.Account = d.account
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	if !d.events.Send(ev) {
		d.logger.Debug("event buffer closed, dropping event", "kind", ev.Kind)
	}
}
