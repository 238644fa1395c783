package progress

import (
	"fmt"
	"time"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/keyedstore"
)

// DefaultRetention is how long a finished run stays visible to pollers.
const DefaultRetention = 30 * time.Second

type entry struct {
	total     int
	processed int
	updatedAt time.Time
}

// Tracker is the registry of in-flight analysis runs. Each Tracker is isolated.
type Tracker struct {
	runs *keyedstore.Store[string, entry]
	now  func() time.Time
}

// NewTracker builds an empty tracker. A nil clock defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{runs: keyedstore.New[string, entry](), now: now}
}

// Start registers runID with total items, replacing any previous entry.
func (t *Tracker) Start(runID string, total int) error {
	if runID == "" {
		return fmt.Errorf("start progress: empty run id")
	}
	if total < 0 {
		return fmt.Errorf("start progress %s: negative total %d", runID, total)
	}
	now := t.now()
	t.runs.Update(runID, func(entry, bool) (entry, bool) {
		return entry{total: total, updatedAt: now}, true
	})
	return nil
}

// Advance marks one more item processed, saturating at total.
// It reports false when runID is unknown.
func (t *Tracker) Advance(runID string) bool {
	now := t.now()
	found := false
	t.runs.Update(runID, func(cur entry, ok bool) (entry, bool) {
		if !ok {
			return cur, false
		}
		found = true
		if cur.processed < cur.total {
			cur.processed++
		}
		cur.updatedAt = now
		return cur, true
	})
	return found
}

// Get returns the progress of runID.
func (t *Tracker) Get(runID string) (domain.RunProgress, bool) {
	e, ok := t.runs.Get(runID)
	if !ok {
		return domain.RunProgress{}, false
	}
	return domain.RunProgress{RunID: runID, Total: e.total, Processed: e.processed}, true
}

// Clear forgets runID.
func (t *Tracker) Clear(runID string) {
	t.runs.Delete(runID)
}

// Sweep drops runs untouched for longer than maxAge, finished or not.
func (t *Tracker) Sweep(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)
	return t.runs.Sweep(func(_ string, e entry) bool {
		return e.updatedAt.Before(cutoff)
	})
}
