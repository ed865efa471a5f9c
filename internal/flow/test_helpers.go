package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/BTreeMap/OpsCopilot/internal/models"
	"github.com/BTreeMap/OpsCopilot/internal/store"
)

// NewMockStateManager creates a mock state manager for testing
func NewMockStateManager() StateManager {
	return NewStoreBasedStateManager(store.NewInMemoryStore())
}

// ManualTimer is a Timer driven by Advance instead of the wall clock.
type ManualTimer struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	entries map[string]*manualEntry
	stopped bool
}

type manualEntry struct {
	seq         int
	scheduledAt time.Time
	at          time.Time
	fn          func()
}

// NewManualTimer creates a ManualTimer whose clock starts at the Unix epoch.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{
		now:     time.Unix(0, 0).UTC(),
		entries: make(map[string]*manualEntry),
	}
}

// ScheduleAfter registers fn to run once the clock has advanced by delay.
func (t *ManualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return "", ErrTimerStopped
	}
	t.nextID++
	id := fmt.Sprintf("manual_%d", t.nextID)
	t.entries[id] = &manualEntry{seq: t.nextID, scheduledAt: t.now, at: t.now.Add(delay), fn: fn}
	return id, nil
}

// Cancel removes a scheduled function.
func (t *ManualTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
	return nil
}

// Stop drops every scheduled function.
func (t *ManualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*manualEntry)
	t.stopped = true
}

// ListActive describes the scheduled functions.
func (t *ManualTimer) ListActive() []models.TimerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.TimerInfo, 0, len(t.entries))
	for id, e := range t.entries {
		out = append(out, models.TimerInfo{
			ID:          id,
			ScheduledAt: e.scheduledAt,
			ExpiresAt:   e.at,
			Remaining:   e.at.Sub(t.now).String(),
		})
	}
	return out
}

// Pending returns the number of scheduled functions.
func (t *ManualTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Advance moves the clock forward by d and runs every function that falls
// due, earliest first, including ones scheduled by functions it runs.
// Functions execute without the timer lock held. It returns the number run.
func (t *ManualTimer) Advance(d time.Duration) int {
	t.mu.Lock()
	target := t.now.Add(d)
	t.mu.Unlock()

	fired := 0
	for {
		t.mu.Lock()
		var (
			nextID string
			next   *manualEntry
		)
		for id, e := range t.entries {
			if e.at.After(target) {
				continue
			}
			if next == nil || e.at.Before(next.at) || (e.at.Equal(next.at) && e.seq < next.seq) {
				nextID, next = id, e
			}
		}
		if next == nil {
			t.now = target
			t.mu.Unlock()
			return fired
		}
		delete(t.entries, nextID)
		t.now = next.at
		t.mu.Unlock()

		next.fn()
		fired++
	}
}
