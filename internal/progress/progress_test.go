package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/formreach-client/internal/model"
)

func TestProgressPct(t *testing.T) {
	assert.Equal(t, 0, ProgressPct(0, 0), "no division by zero")
	assert.Equal(t, 0, ProgressPct(5, 0))
	assert.Equal(t, 0, ProgressPct(0, 100))
	assert.Equal(t, 50, ProgressPct(50, 100))
	assert.Equal(t, 100, ProgressPct(100, 100))
	assert.Equal(t, 100, ProgressPct(120, 100), "processed clamped to total")

	// round half up
	assert.Equal(t, 33, ProgressPct(1, 3))
	assert.Equal(t, 67, ProgressPct(2, 3))
	assert.Equal(t, 13, ProgressPct(1, 8)) // 12.5 rounds up
}

func TestSuccessRatePct(t *testing.T) {
	assert.Equal(t, 0, SuccessRatePct(0, 0))
	assert.Equal(t, 80, SuccessRatePct(80, 100))
}

func TestCompletedCampaignScenario(t *testing.T) {
	// total=100, processed=100, successful=80, failed=20
	assert.Equal(t, 100, ProgressPct(100, 100))
	assert.Equal(t, 80, SuccessRatePct(80, 100))
}

func TestHistorySameTickCollapses(t *testing.T) {
	h := NewHistory(10)
	tick := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	h.Record("c1", tick, model.Campaign{Processed: 1, Successful: 1})
	h.Record("c1", tick, model.Campaign{Processed: 2, Successful: 2})
	h.Record("c1", tick.Add(time.Second), model.Campaign{Processed: 3, Successful: 2, Failed: 1})

	snaps := h.Snapshots("c1")
	require.Len(t, snaps, 2, "same-tick snapshots collapse to the latest")
	assert.Equal(t, 2, snaps[0].Processed)
	assert.Equal(t, 3, snaps[1].Processed)
	assert.Equal(t, 1, snaps[1].Failed)
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(5)
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		h.Record("c1", start.Add(time.Duration(i)*time.Second), model.Campaign{Processed: i})
	}
	snaps := h.Snapshots("c1")
	require.Len(t, snaps, 5)
	assert.Equal(t, 15, snaps[0].Processed, "oldest snapshots evicted first")
	assert.Equal(t, 19, snaps[4].Processed)
}

func TestHistoryForget(t *testing.T) {
	h := NewHistory(5)
	h.Record("c1", time.Now(), model.Campaign{Processed: 1})
	h.Forget("c1")
	assert.Empty(t, h.Snapshots("c1"))
}
