// internal/model/campaign.go
package model

import "time"

type Campaign struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Status             Status     `json:"status"`
	TotalWebsites      int        `json:"total_websites"`
	Processed          int        `json:"processed"`
	Successful         int        `json:"successful"`
	Failed             int        `json:"failed"`
	EmailFallback      int        `json:"email_fallback"`
	CSVFilename        string     `json:"csv_filename,omitempty"`
	Message            string     `json:"message"`
	UseCaptcha         bool       `json:"use_captcha"`
	Proxy              string     `json:"proxy,omitempty"`
	ProcessingDuration float64    `json:"processing_duration"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
}
