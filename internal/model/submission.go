// internal/model/submission.go
package model

import "time"

type Submission struct {
	ID             string    `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	TargetURL      string    `json:"target_url"`
	Success        bool      `json:"success"`
	Status         string    `json:"status"`         // pending, success, failed
	ContactMethod  string    `json:"contact_method"` // form, email
	CaptchaSolved  bool      `json:"captcha_solved"`
	ErrorType      string    `json:"error_type,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RetryCount     int       `json:"retry_count"`
	ProcessingTime float64   `json:"processing_time"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
