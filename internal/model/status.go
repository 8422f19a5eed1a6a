// internal/model/status.go
package model

import "strings"

// Status is the canonical campaign lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopped   Status = "STOPPED"
	StatusCancelled Status = "CANCELLED"
)

// NormalizeStatus maps a raw status string from the backend (or from legacy
// payloads) to a canonical Status. Older API versions used ACTIVE and
// PROCESSING for running campaigns; both collapse to RUNNING here, once, so
// nothing downstream ever has to know about them. Unknown or empty values
// default to DRAFT.
func NormalizeStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "RUNNING", "ACTIVE", "PROCESSING":
		return StatusRunning
	case "QUEUED":
		return StatusQueued
	case "PAUSED":
		return StatusPaused
	case "COMPLETED":
		return StatusCompleted
	case "FAILED":
		return StatusFailed
	case "STOPPED":
		return StatusStopped
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	default:
		return StatusDraft
	}
}

// IsTerminal reports whether the client accepts further transitions for this
// status. STOPPED is not terminal: a stopped campaign can be started again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Website statuses.
const (
	WebsitePending    = "pending"
	WebsiteProcessing = "processing"
	WebsiteSubmitted  = "submitted"
	WebsiteFailed     = "failed"
)

// Submission statuses.
const (
	SubmissionPending = "pending"
	SubmissionSuccess = "success"
	SubmissionFailed  = "failed"
)

// Activity log levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)
