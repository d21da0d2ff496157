package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chatwire/gateway/internal/metrics"
)

// Pair maintains the identified and unidentified channels to the service as
// a unit. It redials a dropped channel with exponential backoff, publishes a
// de-duplicated state stream per channel, and routes keep-alive
// acknowledgements and response errors to the health sink.
type Pair struct {
	cfg    PairConfig
	logger *slog.Logger
	sink   HealthSink

	identified   *channelConn
	unidentified *channelConn

	// Output to the message router
	messages chan ChannelMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	keepAliveID atomic.Int64
	forcing     atomic.Bool
}

// channelConn holds the per-channel connection state.
type channelConn struct {
	channel Channel
	cfg     ClientConfig

	// State stream (consecutive duplicates collapsed)
	stateMu   sync.Mutex
	states    chan State
	lastState State
	hasLast   bool

	// Current session
	mu     sync.Mutex
	client Client
	redial chan struct{}
}

// NewPair creates the paired transport.
func NewPair(cfg PairConfig, logger *slog.Logger) *Pair {
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := func(url, authorization string) ClientConfig {
		return ClientConfig{
			URL:           url,
			Authorization: authorization,
			WriteTimeout:  cfg.WriteTimeout,
			BufferSize:    cfg.BufferSize,
		}
	}

	return &Pair{
		cfg:    cfg,
		logger: logger,
		identified: &channelConn{
			channel: ChannelIdentified,
			cfg:     clientCfg(cfg.IdentifiedURL, cfg.Authorization),
			states:  make(chan State, cfg.StateBufferSize),
		},
		unidentified: &channelConn{
			channel: ChannelUnidentified,
			cfg:     clientCfg(cfg.UnidentifiedURL, ""),
			states:  make(chan State, cfg.StateBufferSize),
		},
		messages: make(chan ChannelMessage, cfg.BufferSize),
	}
}

// SetHealthSink installs the liveness callback target. Must be called before
// Run.
func (p *Pair) SetHealthSink(sink HealthSink) {
	p.sink = sink
}

// IdentifiedStates returns the identified channel's state stream.
func (p *Pair) IdentifiedStates() <-chan State {
	return p.identified.states
}

// UnidentifiedStates returns the unidentified channel's state stream.
func (p *Pair) UnidentifiedStates() <-chan State {
	return p.unidentified.states
}

// Messages returns the stream of data envelopes from both channels.
func (p *Pair) Messages() <-chan ChannelMessage {
	return p.messages
}

// Run starts both channel loops. Callable once per Pair.
func (p *Pair) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrRunning
	}
	p.running = true
	p.mu.Unlock()

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(2)
	go p.runChannel(p.identified)
	go p.runChannel(p.unidentified)

	p.logger.Info("transport started",
		"identified_url", p.cfg.IdentifiedURL,
		"unidentified_url", p.cfg.UnidentifiedURL,
	)
	return nil
}

// Stop tears down both channels and closes the state and message streams.
func (p *Pair) Stop(ctx context.Context) error {
	p.logger.Info("stopping transport")

	if p.cancel != nil {
		p.cancel()
	}
	p.identified.closeCurrent()
	p.unidentified.closeCurrent()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("transport shutdown timeout")
	}

	p.finalState(p.identified)
	p.finalState(p.unidentified)
	close(p.identified.states)
	close(p.unidentified.states)
	close(p.messages)

	p.logger.Info("transport stopped")
	return nil
}

// finalState records the terminal Closed transition. Only called from Stop
// once the channel loops have exited, so there are no concurrent senders.
func (p *Pair) finalState(cc *channelConn) {
	cc.stateMu.Lock()
	last, had := cc.lastState, cc.hasLast
	cc.lastState = StateClosed
	cc.hasLast = true
	cc.stateMu.Unlock()

	if had && last == StateClosed {
		return
	}
	metrics.StateTransitions.WithLabelValues(cc.channel.String(), StateClosed.String()).Inc()
	select {
	case cc.states <- StateClosed:
	default:
	}
}

// SendKeepAlive writes one keep-alive envelope per connected channel.
func (p *Pair) SendKeepAlive() error {
	env := Envelope{
		Type:   EnvelopeKeepAlive,
		ID:     p.keepAliveID.Add(1),
		SentAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	var errs []error
	sent := 0
	for _, cc := range []*channelConn{p.identified, p.unidentified} {
		cl := cc.currentClient()
		if cl == nil || !cl.IsConnected() {
			continue
		}
		if err := cl.Send(data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cc.channel, err))
			continue
		}
		sent++
		metrics.KeepAlivesSent.WithLabelValues(cc.channel.String()).Inc()
	}

	if sent == 0 && len(errs) == 0 {
		return ErrNotConnected
	}
	return errors.Join(errs...)
}

// ForceReconnectAll tears down both sockets; the channel loops redial.
// Concurrent escalations coalesce into a single teardown.
func (p *Pair) ForceReconnectAll() error {
	if !p.forcing.CompareAndSwap(false, true) {
		return nil
	}
	defer p.forcing.Store(false)

	p.logger.Warn("forcing new connections on both channels")

	p.identified.closeCurrent()
	p.unidentified.closeCurrent()
	return nil
}

// runChannel dials, reads, and redials one channel until the pair stops.
func (p *Pair) runChannel(cc *channelConn) {
	defer p.wg.Done()

	logger := p.logger.With("channel", cc.channel.String())

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RedialBaseWait
	bo.MaxInterval = p.cfg.RedialMaxWait
	bo.MaxElapsedTime = 0

	first := true
	for {
		if p.ctx.Err() != nil {
			return
		}

		if first {
			p.emitState(cc, StateConnecting)
		} else {
			p.emitState(cc, StateReconnecting)
		}

		cl := NewClient(cc.cfg, logger)
		if err := cl.Connect(p.ctx); err != nil {
			logger.Warn("dial failed", "error", err)
			p.emitState(cc, StateDisconnected)

			select {
			case <-p.ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
			first = false
			continue
		}
		bo.Reset()

		redial := cc.beginSession(cl)
		p.emitState(cc, StateConnected)

		p.readChannel(cc, cl, redial)

		cc.endSession()
		cl.Close()

		if p.ctx.Err() != nil {
			return
		}
		p.emitState(cc, StateDisconnected)
		first = false
	}
}

// readChannel consumes one session's messages until the connection fails,
// is forced to redial, or the pair stops.
func (p *Pair) readChannel(cc *channelConn, cl Client, redial <-chan struct{}) {
	logger := p.logger.With("channel", cc.channel.String())

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-redial:
			return

		case err := <-cl.Errors():
			logger.Warn("connection error", "error", err)
			return

		case msg, ok := <-cl.Messages():
			if !ok {
				return
			}
			p.route(cc.channel, msg)
		}
	}
}

// route classifies an inbound frame and dispatches it.
func (p *Pair) route(ch Channel, msg TimestampedMessage) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		p.logger.Debug("discarding unparseable frame",
			"channel", ch,
			"error", err,
		)
		return
	}

	if env.Type == EnvelopeKeepAliveAck {
		metrics.KeepAliveAcks.WithLabelValues(ch.String()).Inc()
		if p.sink != nil {
			p.sink.OnKeepAliveResponse(ch, time.UnixMilli(env.SentAt))
		}
		return
	}

	if env.Status >= 400 {
		metrics.ResponseErrors.WithLabelValues(ch.String(), strconv.Itoa(env.Status)).Inc()
		if p.sink != nil {
			p.sink.OnMessageError(ch, env.Status)
		}
	}

	out := ChannelMessage{
		Channel:    ch,
		Envelope:   env,
		ReceivedAt: msg.ReceivedAt,
	}

	select {
	case p.messages <- out:
	case <-p.ctx.Done():
	default:
		p.logger.Warn("message buffer full, dropping", "channel", ch)
	}
}

// emitState publishes a state transition, collapsing consecutive duplicates.
func (p *Pair) emitState(cc *channelConn, st State) {
	cc.stateMu.Lock()
	if cc.hasLast && cc.lastState == st {
		cc.stateMu.Unlock()
		return
	}
	cc.lastState = st
	cc.hasLast = true
	cc.stateMu.Unlock()

	metrics.StateTransitions.WithLabelValues(cc.channel.String(), st.String()).Inc()

	select {
	case <-p.ctx.Done():
		// Stream is closing; the terminal state is emitted by Stop.
	case cc.states <- st:
	}
}

func (cc *channelConn) beginSession(cl Client) <-chan struct{} {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.client = cl
	cc.redial = make(chan struct{})
	return cc.redial
}

func (cc *channelConn) endSession() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.client = nil
	cc.redial = nil
}

// closeCurrent closes the live session, if any, and signals its read loop.
func (cc *channelConn) closeCurrent() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.client == nil {
		return
	}
	cc.client.Close()
	if cc.redial != nil {
		close(cc.redial)
		cc.redial = nil
	}
}

func (cc *channelConn) currentClient() Client {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.client
}
