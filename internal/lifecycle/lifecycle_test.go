package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/formreach-client/internal/apperrors"
	"github.com/unclebandit/formreach-client/internal/model"
)

func TestApplyTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    model.Status
		action  Action
		want    model.Status
		changed bool
		wantErr bool
	}{
		{"start from draft", model.StatusDraft, ActionStart, model.StatusRunning, true, false},
		{"start from paused", model.StatusPaused, ActionStart, model.StatusRunning, true, false},
		{"start from stopped", model.StatusStopped, ActionStart, model.StatusRunning, true, false},
		{"start while running is a no-op", model.StatusRunning, ActionStart, model.StatusRunning, false, false},
		{"start from completed rejected", model.StatusCompleted, ActionStart, model.StatusCompleted, false, true},
		{"start from cancelled rejected", model.StatusCancelled, ActionStart, model.StatusCancelled, false, true},
		{"pause running", model.StatusRunning, ActionPause, model.StatusPaused, true, false},
		{"pause paused is a no-op", model.StatusPaused, ActionPause, model.StatusPaused, false, false},
		{"pause draft rejected", model.StatusDraft, ActionPause, model.StatusDraft, false, true},
		{"pause completed rejected", model.StatusCompleted, ActionPause, model.StatusCompleted, false, true},
		{"pause failed rejected", model.StatusFailed, ActionPause, model.StatusFailed, false, true},
		{"stop running", model.StatusRunning, ActionStop, model.StatusStopped, true, false},
		{"stop paused", model.StatusPaused, ActionStop, model.StatusStopped, true, false},
		{"stop stopped is a no-op", model.StatusStopped, ActionStop, model.StatusStopped, false, false},
		{"stop draft rejected", model.StatusDraft, ActionStop, model.StatusDraft, false, true},
		{"complete running", model.StatusRunning, ActionComplete, model.StatusCompleted, true, false},
		{"complete paused rejected", model.StatusPaused, ActionComplete, model.StatusPaused, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, changed, err := Apply(tc.from, tc.action)
			if tc.wantErr {
				require.Error(t, err)
				var conflict *apperrors.ConflictError
				assert.ErrorAs(t, err, &conflict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
			assert.Equal(t, tc.changed, changed)
		})
	}
}

func TestGuardPredicates(t *testing.T) {
	assert.True(t, CanStart(model.StatusDraft))
	assert.True(t, CanStart(model.StatusRunning)) // no-op counts as allowed
	assert.False(t, CanStart(model.StatusCompleted))

	assert.True(t, CanPause(model.StatusRunning))
	assert.False(t, CanPause(model.StatusDraft))

	assert.True(t, CanStop(model.StatusPaused))
	assert.False(t, CanStop(model.StatusCompleted))
}
