// internal/lifecycle/lifecycle.go
package lifecycle

import (
	"github.com/unclebandit/formreach-client/internal/apperrors"
	"github.com/unclebandit/formreach-client/internal/model"
)

// Action is a lifecycle command against a campaign.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionStop     Action = "stop"
	ActionComplete Action = "complete" // server-driven, never user-invoked
)

// Apply validates action against the current status and returns the next
// status. changed is false for accepted no-ops (start on a RUNNING campaign,
// pause on a PAUSED one): the caller must skip the network call but report
// success. Invalid transitions return a ConflictError before any I/O happens.
func Apply(current model.Status, action Action) (next model.Status, changed bool, err error) {
	switch action {
	case ActionStart:
		switch current {
		case model.StatusDraft, model.StatusPaused, model.StatusStopped:
			return model.StatusRunning, true, nil
		case model.StatusRunning:
			return model.StatusRunning, false, nil
		}
	case ActionPause:
		switch current {
		case model.StatusRunning:
			return model.StatusPaused, true, nil
		case model.StatusPaused:
			return model.StatusPaused, false, nil
		}
	case ActionStop:
		switch current {
		case model.StatusRunning, model.StatusPaused:
			return model.StatusStopped, true, nil
		case model.StatusStopped:
			return model.StatusStopped, false, nil
		}
	case ActionComplete:
		if current == model.StatusRunning {
			return model.StatusCompleted, true, nil
		}
	}
	return current, false, apperrors.NewConflict("cannot %s campaign in status %s", action, current)
}

// CanStart reports whether ActionStart would be accepted (including as a
// no-op). Used by UIs to enable or disable controls without round-tripping.
func CanStart(s model.Status) bool { return allowed(s, ActionStart) }

func CanPause(s model.Status) bool { return allowed(s, ActionPause) }

func CanStop(s model.Status) bool { return allowed(s, ActionStop) }

func allowed(s model.Status, a Action) bool {
	_, _, err := Apply(s, a)
	return err == nil
}
