// internal/analytics/analytics.go
package analytics

import (
	"math"
	"net/url"
	"sort"

	"github.com/unclebandit/formreach-client/internal/model"
)

// Rollup is the on-demand analytics view of one campaign's submissions and
// websites. It is recomputed from current store contents on every call and
// never cached: a stale KPI is worse than a recomputed one.
type Rollup struct {
	TotalSubmissions       int             `json:"total_submissions"`
	SuccessRatePct         int             `json:"success_rate_pct"`
	CaptchaSolveRatePct    int             `json:"captcha_solve_rate_pct"`
	EmailExtractionRatePct int             `json:"email_extraction_rate_pct"`
	DomainStats            []DomainStat    `json:"domain_stats"`
	DailyTrend             []TrendBucket   `json:"daily_trend"`
	PeakDay                string          `json:"peak_day,omitempty"`
	FailureClusters        []FailureCluster `json:"failure_clusters"`
}

type DomainStat struct {
	Domain         string `json:"domain"`
	Total          int    `json:"total"`
	Successful     int    `json:"successful"`
	SuccessRatePct int    `json:"success_rate_pct"`
}

type TrendBucket struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Submissions int    `json:"submissions"`
	Successful  int    `json:"successful"`
}

type FailureCluster struct {
	ErrorType string `json:"error_type"`
	Count     int    `json:"count"`
	ImpactPct int    `json:"impact_pct"`
	Severity  string `json:"severity"` // high, medium, low
}

// SeverityPolicy classifies failure clusters by occurrence count and by impact
// (cluster count over all submissions in the period). The thresholds are a
// policy choice, not a derived constant; override them per deployment if the
// defaults don't fit.
type SeverityPolicy struct {
	HighCount       int
	HighImpactPct   float64
	MediumCount     int
	MediumImpactPct float64
}

func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{
		HighCount:       10,
		HighImpactPct:   25,
		MediumCount:     5,
		MediumImpactPct: 10,
	}
}

func (p SeverityPolicy) classify(count, totalSubmissions int) string {
	impact := 0.0
	if totalSubmissions > 0 {
		impact = float64(count) / float64(totalSubmissions) * 100
	}
	switch {
	case count >= p.HighCount || impact >= p.HighImpactPct:
		return "high"
	case count >= p.MediumCount || impact >= p.MediumImpactPct:
		return "medium"
	default:
		return "low"
	}
}

const unknownErrorType = "Unknown Error"

// Compute derives the full rollup from a campaign's submissions and websites.
// CAPTCHA encounters are counted from website metadata (has_captcha); solves
// from submission outcomes. All rate guards return 0 instead of dividing by
// zero.
func Compute(subs []model.Submission, sites []model.Website, policy SeverityPolicy) Rollup {
	r := Rollup{TotalSubmissions: len(subs)}

	successful := 0
	captchaSolved := 0
	emailsExtracted := 0
	for _, s := range subs {
		if s.Success {
			successful++
			if s.ContactMethod == "email" {
				emailsExtracted++
			}
		}
		if s.CaptchaSolved {
			captchaSolved++
		}
	}

	captchaEncountered := 0
	for _, w := range sites {
		if w.HasCaptcha {
			captchaEncountered++
		}
	}

	r.SuccessRatePct = ratePct(successful, len(subs))
	r.CaptchaSolveRatePct = ratePct(captchaSolved, captchaEncountered)
	r.EmailExtractionRatePct = ratePct(emailsExtracted, successful)
	r.DomainStats = domainStats(subs)
	r.DailyTrend, r.PeakDay = dailyTrend(subs)
	r.FailureClusters = failureClusters(subs, policy)
	return r
}

func ratePct(n, d int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Floor(float64(n)/float64(d)*100 + 0.5))
}

func domainStats(subs []model.Submission) []DomainStat {
	byDomain := map[string]*DomainStat{}
	for _, s := range subs {
		d := domainOf(s.TargetURL)
		st, ok := byDomain[d]
		if !ok {
			st = &DomainStat{Domain: d}
			byDomain[d] = st
		}
		st.Total++
		if s.Success {
			st.Successful++
		}
	}
	out := make([]DomainStat, 0, len(byDomain))
	for _, st := range byDomain {
		st.SuccessRatePct = ratePct(st.Successful, st.Total)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		if raw != "" {
			return raw
		}
		return "unknown"
	}
	return u.Hostname()
}

// dailyTrend buckets submissions by calendar day. The peak day is the bucket
// with the most submissions; ties resolve to the earliest date.
func dailyTrend(subs []model.Submission) ([]TrendBucket, string) {
	byDay := map[string]*TrendBucket{}
	for _, s := range subs {
		if s.SubmittedAt.IsZero() {
			continue
		}
		day := s.SubmittedAt.UTC().Format("2006-01-02")
		b, ok := byDay[day]
		if !ok {
			b = &TrendBucket{Date: day}
			byDay[day] = b
		}
		b.Submissions++
		if s.Success {
			b.Successful++
		}
	}
	out := make([]TrendBucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	peak := ""
	peakCount := 0
	for _, b := range out {
		if b.Submissions > peakCount {
			peak = b.Date
			peakCount = b.Submissions
		}
	}
	return out, peak
}

func failureClusters(subs []model.Submission, policy SeverityPolicy) []FailureCluster {
	total := len(subs)
	byType := map[string]int{}
	for _, s := range subs {
		if s.Success || s.Status != model.SubmissionFailed {
			continue
		}
		errType := s.ErrorType
		if errType == "" {
			errType = unknownErrorType
		}
		byType[errType]++
	}
	out := make([]FailureCluster, 0, len(byType))
	for errType, count := range byType {
		out = append(out, FailureCluster{
			ErrorType: errType,
			Count:     count,
			ImpactPct: ratePct(count, total),
			Severity:  policy.classify(count, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ErrorType < out[j].ErrorType
	})
	return out
}
