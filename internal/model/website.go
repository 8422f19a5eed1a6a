// internal/model/website.go
package model

type Website struct {
	ID             string `json:"id"`
	CampaignID     string `json:"campaign_id"`
	Domain         string `json:"domain"`
	Status         string `json:"status"` // pending, processing, submitted, failed
	FormDetected   bool   `json:"form_detected"`
	HasCaptcha     bool   `json:"has_captcha"`
	ContactURL     string `json:"contact_url,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	FormFieldCount int    `json:"form_field_count,omitempty"`
}
