package journal

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chatwire/gateway/internal/model"
	"github.com/chatwire/gateway/internal/router"
)

func TestRowValues(t *testing.T) {
	account := uuid.MustParse("3f1f9d1e-8d46-4e5b-9a77-21cb21ab4a7e")
	occurred := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	ev := model.ChannelEvent{
		Account:    account,
		Channel:    "identified",
		Kind:       model.KindResponseError,
		Status:     409,
		OccurredAt: occurred,
	}

	values := rowValues(ev)
	if len(values) != len(eventColumns) {
		t.Fatalf("rowValues returned %d values for %d columns", len(values), len(eventColumns))
	}

	if values[0] != account {
		t.Errorf("account = %v, want %v", values[0], account)
	}
	if values[1] != "identified" {
		t.Errorf("channel = %v, want identified", values[1])
	}
	if values[2] != "response-error" {
		t.Errorf("kind = %v, want response-error", values[2])
	}
	if values[4] != 409 {
		t.Errorf("status = %v, want 409", values[4])
	}

	// Timestamps are normalized to UTC before writing.
	ts, ok := values[5].(time.Time)
	if !ok {
		t.Fatalf("occurred_at is %T, want time.Time", values[5])
	}
	if ts.Location() != time.UTC {
		t.Errorf("occurred_at location = %v, want UTC", ts.Location())
	}
	if !ts.Equal(occurred) {
		t.Errorf("occurred_at = %v, want instant %v", ts, occurred)
	}
}

func TestWriter_BatchAccumulation(t *testing.T) {
	input := router.NewBuffer[model.ChannelEvent](16)
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, input, nil, nil)

	// Below the batch threshold nothing is flushed; events just
	// accumulate. Exercised without a database by feeding the batch
	// directly.
	for i := 0; i < 3; i++ {
		w.batchMu.Lock()
		w.batch = append(w.batch, model.ChannelEvent{Kind: model.KindStateChange})
		w.batchMu.Unlock()
	}

	w.batchMu.Lock()
	pending := len(w.batch)
	w.batchMu.Unlock()
	if pending != 3 {
		t.Errorf("pending batch = %d, want 3", pending)
	}

	stats := w.Stats()
	if stats.BatchesWritten != 0 || stats.EventsWritten != 0 {
		t.Errorf("stats = %+v, want no writes yet", stats)
	}
}
