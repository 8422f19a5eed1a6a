package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"RUNNING":    StatusRunning,
		"running":    StatusRunning,
		"ACTIVE":     StatusRunning,
		"active":     StatusRunning,
		"Processing": StatusRunning,
		" PAUSED ":   StatusPaused,
		"completed":  StatusCompleted,
		"CANCELED":   StatusCancelled,
		"CANCELLED":  StatusCancelled,
		"stopped":    StatusStopped,
		"queued":     StatusQueued,
		"":           StatusDraft,
		"garbage":    StatusDraft,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), "raw=%q", raw)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())

	// stopped campaigns can be started again
	assert.False(t, StatusStopped.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusDraft.IsTerminal())
}
