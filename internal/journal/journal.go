package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwire/gateway/internal/metrics"
	"github.com/chatwire/gateway/internal/model"
	"github.com/chatwire/gateway/internal/router"
)

var eventColumns = []string{"account_id", "channel", "kind", "state", "status", "occurred_at"}

// WriterConfig tunes batching.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// WriterStats counts journal activity.
type WriterStats struct {
	EventsWritten  int64
	BatchesWritten int64
	WriteErrors    int64
}

// Writer consumes ChannelEvents from the router buffer and writes them to
// the channel_events table.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the router
	input *router.Buffer[model.ChannelEvent]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []model.ChannelEvent
	batchMu     sync.Mutex
	flushTicker *time.Ticker
	stats       WriterStats

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a journal writer.
func NewWriter(cfg WriterConfig, input *router.Buffer[model.ChannelEvent], db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]model.ChannelEvent, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing any remaining events.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.input.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush
	w.flush(ctx)

	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		ev, ok := w.input.Receive()
		if !ok {
			return
		}

		w.batchMu.Lock()
		w.batch = append(w.batch, ev)
		full := len(w.batch) >= w.cfg.BatchSize
		w.batchMu.Unlock()

		if full {
			w.flush(w.ctx)
		}
	}
}

// flushLoop flushes pending events on the interval.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// flush writes the pending batch with CopyFrom.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.ChannelEvent, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	metrics.JournalBatchSize.Observe(float64(len(batch)))

	_, err := w.db.CopyFrom(
		ctx,
		pgx.Identifier{"channel_events"},
		eventColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			return rowValues(batch[i]), nil
		}),
	)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	if err != nil {
		// Drop the batch rather than stall producers; the journal is
		// an audit trail, not the source of truth.
		w.stats.WriteErrors++
		metrics.JournalWriteErrors.Inc()
		w.logger.Error("journal write failed",
			"events", len(batch),
			"error", err,
		)
		return
	}
	w.stats.EventsWritten += int64(len(batch))
	w.stats.BatchesWritten++
}

// rowValues orders an event's fields to match eventColumns.
func rowValues(ev model.ChannelEvent) []any {
	return []any{
		ev.Account,
		ev.Channel,
		string(ev.Kind),
		ev.State,
		ev.Status,
		ev.OccurredAt.UTC(),
	}
}
