package health

import (
	"sync"
	"time"
)

// errorTracker detects bursts of a tracked error within a sliding time
// window. It holds a fixed number of sample timestamps; samples older than
// the window are expired lazily on the next insert.
type errorTracker struct {
	mu     sync.Mutex
	window time.Duration
	slots  []time.Time
}

func newErrorTracker(capacity int, window time.Duration) *errorTracker {
	return &errorTracker{
		window: window,
		slots:  make([]time.Time, capacity),
	}
}

// addSample records an error occurrence at now. Returns true when the window
// has filled to capacity, in which case all samples are dropped so the
// condition requires a fresh burst to retrigger.
func (t *errorTracker) addSample(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.window)

	// Count starts at 1 to include the sample inserted below. Zero-value
	// slots are empty; an empty slot always wins the minimum scan.
	count := 1
	min := 0

	for i := range t.slots {
		if t.slots[i].Before(cutoff) {
			t.slots[i] = time.Time{}
		} else if !t.slots[i].IsZero() {
			count++
		}

		if t.slots[i].Before(t.slots[min]) {
			min = i
		}
	}

	t.slots[min] = now

	if count >= len(t.slots) {
		for i := range t.slots {
			t.slots[i] = time.Time{}
		}
		return true
	}
	return false
}
