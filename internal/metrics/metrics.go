package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StateTransitions counts channel state changes by channel and state.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "transport",
		Name:      "state_transitions_total",
		Help:      "Channel connection state transitions.",
	}, []string{"channel", "state"})

	// KeepAlivesSent counts keep-alive probes written per channel.
	KeepAlivesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "transport",
		Name:      "keepalives_sent_total",
		Help:      "Keep-alive probes sent.",
	}, []string{"channel"})

	// KeepAliveAcks counts keep-alive acknowledgements per channel.
	KeepAliveAcks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "transport",
		Name:      "keepalive_acks_total",
		Help:      "Keep-alive acknowledgements received.",
	}, []string{"channel"})

	// ForcedReconnects counts full-pair forced reconnections by cause
	// ("stale" or "mismatch").
	ForcedReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "transport",
		Name:      "forced_reconnects_total",
		Help:      "Times both channels were torn down and redialed.",
	}, []string{"cause"})

	// ResponseErrors counts error response envelopes by channel and status.
	ResponseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "transport",
		Name:      "response_errors_total",
		Help:      "Error response envelopes received.",
	}, []string{"channel", "status"})

	// JournalBatchSize observes event batch sizes at write time.
	JournalBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "journal",
		Name:      "batch_size",
		Help:      "Channel-event batch sizes written to the journal.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// JournalWriteErrors counts failed journal writes.
	JournalWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "journal",
		Name:      "write_errors_total",
		Help:      "Failed journal batch writes.",
	})
)
