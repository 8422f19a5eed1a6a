// internal/progress/progress.go
package progress

import (
	"math"
	"sync"
	"time"

	"github.com/unclebandit/formreach-client/internal/model"
)

// ProgressPct is the completion percentage for a campaign's counters, rounded
// half-up. A campaign with no websites is 0% done, never a division by zero.
func ProgressPct(processed, total int) int {
	if total <= 0 {
		return 0
	}
	if processed > total {
		processed = total
	}
	return roundPct(processed, total)
}

// SuccessRatePct is successful/total as a display percentage, zero-guarded.
func SuccessRatePct(successful, total int) int {
	if total <= 0 {
		return 0
	}
	return roundPct(successful, total)
}

func roundPct(n, d int) int {
	return int(math.Floor(float64(n)/float64(d)*100 + 0.5))
}

// Snapshot is one point in a campaign's progress history.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Processed  int       `json:"processed"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
}

// DefaultHistorySize bounds the per-campaign history; enough for a sparkline.
const DefaultHistorySize = 60

// History keeps a bounded rolling window of snapshots per campaign for trend
// rendering. Two snapshots recorded for the same tick (identical timestamp)
// collapse to the latest one.
type History struct {
	mu    sync.Mutex
	limit int
	byID  map[string][]Snapshot
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit, byID: make(map[string][]Snapshot)}
}

// Record appends a snapshot taken from a campaign's current counters. The
// caller controls the tick granularity via the timestamp it passes; the store
// hook truncates to the second.
func (h *History) Record(campaignID string, ts time.Time, c model.Campaign) {
	snap := Snapshot{Timestamp: ts, Processed: c.Processed, Successful: c.Successful, Failed: c.Failed}

	h.mu.Lock()
	defer h.mu.Unlock()
	snaps := h.byID[campaignID]
	if n := len(snaps); n > 0 && snaps[n-1].Timestamp.Equal(ts) {
		snaps[n-1] = snap
	} else {
		snaps = append(snaps, snap)
	}
	if len(snaps) > h.limit {
		snaps = snaps[len(snaps)-h.limit:]
	}
	h.byID[campaignID] = snaps
}

// Snapshots returns a copy of the campaign's history, oldest first.
func (h *History) Snapshots(campaignID string) []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	snaps := h.byID[campaignID]
	out := make([]Snapshot, len(snaps))
	copy(out, snaps)
	return out
}

// Forget drops a campaign's history, e.g. after the campaign is deleted.
func (h *History) Forget(campaignID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byID, campaignID)
}

// Attach wires the history to a store-style change hook with one-second ticks.
func (h *History) Attach() func(model.Campaign) {
	return func(c model.Campaign) {
		h.Record(c.ID, time.Now().Truncate(time.Second), c)
	}
}
