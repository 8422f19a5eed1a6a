// internal/model/activity.go
package model

import "time"

// ActivityLogEntry is append-only: entries are recorded and displayed, never
// mutated, and never feed progress or analytics.
type ActivityLogEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	Level        string         `json:"level"`  // INFO, WARN, ERROR
	Source       string         `json:"source"` // system, app, submission
	Action       string         `json:"action"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
	CampaignID   string         `json:"campaign_id,omitempty"`
	WebsiteID    string         `json:"website_id,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
}
