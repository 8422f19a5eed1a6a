package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/formreach-client/internal/model"
)

func day(d int) time.Time {
	return time.Date(2026, 8, d, 10, 0, 0, 0, time.UTC)
}

func TestCaptchaSolveRateZeroEncounters(t *testing.T) {
	subs := []model.Submission{
		{ID: "s1", Success: true, Status: model.SubmissionSuccess},
	}
	sites := []model.Website{
		{ID: "w1", HasCaptcha: false},
	}
	r := Compute(subs, sites, DefaultSeverityPolicy())
	assert.Equal(t, 0, r.CaptchaSolveRatePct, "no encounters must not divide by zero")
}

func TestRates(t *testing.T) {
	subs := []model.Submission{
		{ID: "s1", Success: true, Status: model.SubmissionSuccess, ContactMethod: "form", CaptchaSolved: true},
		{ID: "s2", Success: true, Status: model.SubmissionSuccess, ContactMethod: "email"},
		{ID: "s3", Success: false, Status: model.SubmissionFailed, ErrorType: "Timeout"},
		{ID: "s4", Success: false, Status: model.SubmissionFailed},
	}
	sites := []model.Website{
		{ID: "w1", HasCaptcha: true},
		{ID: "w2", HasCaptcha: true},
		{ID: "w3"},
	}
	r := Compute(subs, sites, DefaultSeverityPolicy())

	assert.Equal(t, 4, r.TotalSubmissions)
	assert.Equal(t, 50, r.SuccessRatePct)
	assert.Equal(t, 50, r.CaptchaSolveRatePct, "1 solved / 2 encountered")
	assert.Equal(t, 50, r.EmailExtractionRatePct, "1 email / 2 successful")
}

func TestEmailExtractionRateZeroSuccessful(t *testing.T) {
	subs := []model.Submission{
		{ID: "s1", Success: false, Status: model.SubmissionFailed},
	}
	r := Compute(subs, nil, DefaultSeverityPolicy())
	assert.Equal(t, 0, r.EmailExtractionRatePct)
}

func TestDailyTrendPeakDayTieBreaksEarliest(t *testing.T) {
	subs := []model.Submission{
		{ID: "s1", SubmittedAt: day(10)},
		{ID: "s2", SubmittedAt: day(10)},
		{ID: "s3", SubmittedAt: day(12)},
		{ID: "s4", SubmittedAt: day(12)},
		{ID: "s5", SubmittedAt: day(11)},
	}
	r := Compute(subs, nil, DefaultSeverityPolicy())

	require.Len(t, r.DailyTrend, 3)
	assert.Equal(t, "2026-08-10", r.DailyTrend[0].Date)
	assert.Equal(t, "2026-08-10", r.PeakDay, "tie between the 10th and 12th goes to the earliest")
}

func TestFailureClustering(t *testing.T) {
	subs := make([]model.Submission, 0, 40)
	for i := 0; i < 12; i++ {
		subs = append(subs, model.Submission{Status: model.SubmissionFailed, ErrorType: "Timeout"})
	}
	for i := 0; i < 3; i++ {
		subs = append(subs, model.Submission{Status: model.SubmissionFailed}) // no error_type
	}
	for i := 0; i < 25; i++ {
		subs = append(subs, model.Submission{Success: true, Status: model.SubmissionSuccess})
	}

	r := Compute(subs, nil, DefaultSeverityPolicy())
	require.Len(t, r.FailureClusters, 2)

	timeout := r.FailureClusters[0]
	assert.Equal(t, "Timeout", timeout.ErrorType)
	assert.Equal(t, 12, timeout.Count)
	assert.Equal(t, 30, timeout.ImpactPct)
	assert.Equal(t, "high", timeout.Severity, "12 occurrences crosses the high count threshold")

	unknown := r.FailureClusters[1]
	assert.Equal(t, "Unknown Error", unknown.ErrorType, "missing error_type falls back")
	assert.Equal(t, 3, unknown.Count)
	assert.Equal(t, "low", unknown.Severity)
}

func TestSeverityPolicyImpactThreshold(t *testing.T) {
	// 4 failures out of 10 submissions: below medium count, above high impact
	subs := make([]model.Submission, 0, 10)
	for i := 0; i < 4; i++ {
		subs = append(subs, model.Submission{Status: model.SubmissionFailed, ErrorType: "CAPTCHA Failed"})
	}
	for i := 0; i < 6; i++ {
		subs = append(subs, model.Submission{Success: true, Status: model.SubmissionSuccess})
	}
	r := Compute(subs, nil, DefaultSeverityPolicy())
	require.Len(t, r.FailureClusters, 1)
	assert.Equal(t, "high", r.FailureClusters[0].Severity, "40% impact is high regardless of count")
}

func TestDomainStats(t *testing.T) {
	subs := []model.Submission{
		{ID: "s1", TargetURL: "https://a.example.com/contact", Success: true, Status: model.SubmissionSuccess},
		{ID: "s2", TargetURL: "https://a.example.com/contact", Success: false, Status: model.SubmissionFailed},
		{ID: "s3", TargetURL: "https://b.example.com/contact", Success: true, Status: model.SubmissionSuccess},
	}
	r := Compute(subs, nil, DefaultSeverityPolicy())
	require.Len(t, r.DomainStats, 2)
	assert.Equal(t, "a.example.com", r.DomainStats[0].Domain, "busiest domain first")
	assert.Equal(t, 50, r.DomainStats[0].SuccessRatePct)
	assert.Equal(t, 100, r.DomainStats[1].SuccessRatePct)
}

func TestEmptyInput(t *testing.T) {
	r := Compute(nil, nil, DefaultSeverityPolicy())
	assert.Equal(t, 0, r.SuccessRatePct)
	assert.Equal(t, 0, r.CaptchaSolveRatePct)
	assert.Empty(t, r.FailureClusters)
	assert.Empty(t, r.PeakDay)
}
