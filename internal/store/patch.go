// internal/store/patch.go
package store

import (
	"time"

	"github.com/unclebandit/formreach-client/internal/model"
)

// The push envelope carries updates as a loose JSON object. These helpers map
// whatever shows up onto the typed entities, ignoring fields they don't know.

func patchCampaign(c *model.Campaign, updates map[string]any) {
	if v, ok := asString(updates["status"]); ok {
		c.Status = model.NormalizeStatus(v)
	}
	if v, ok := asString(updates["name"]); ok {
		c.Name = v
	}
	if v, ok := asInt(updates["total_websites"]); ok {
		c.TotalWebsites = v
	}
	if v, ok := asInt(updates["processed"]); ok {
		c.Processed = v
	}
	if v, ok := asInt(updates["successful"]); ok {
		c.Successful = v
	}
	if v, ok := asInt(updates["failed"]); ok {
		c.Failed = v
	}
	if v, ok := asInt(updates["email_fallback"]); ok {
		c.EmailFallback = v
	}
	if v, ok := asFloat(updates["processing_duration"]); ok {
		c.ProcessingDuration = v
	}
	if v, ok := asTime(updates["updated_at"]); ok {
		c.UpdatedAt = v
	}
	if v, ok := asTime(updates["started_at"]); ok {
		t := v
		c.StartedAt = &t
	}
}

func patchSubmission(sub *model.Submission, updates map[string]any) {
	if v, ok := asString(updates["status"]); ok {
		sub.Status = v
	}
	if v, ok := asBool(updates["success"]); ok {
		sub.Success = v
	}
	if v, ok := asString(updates["target_url"]); ok {
		sub.TargetURL = v
	}
	if v, ok := asString(updates["contact_method"]); ok {
		sub.ContactMethod = v
	}
	if v, ok := asBool(updates["captcha_solved"]); ok {
		sub.CaptchaSolved = v
	}
	if v, ok := asString(updates["error_type"]); ok {
		sub.ErrorType = v
	}
	if v, ok := asString(updates["error_message"]); ok {
		sub.ErrorMessage = v
	}
	if v, ok := asInt(updates["retry_count"]); ok {
		sub.RetryCount = v
	}
	if v, ok := asFloat(updates["processing_time"]); ok {
		sub.ProcessingTime = v
	}
	if v, ok := asTime(updates["submitted_at"]); ok {
		sub.SubmittedAt = v
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt accepts float64 (what encoding/json produces) as well as int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
