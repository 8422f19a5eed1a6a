// internal/store/store.go
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/formreach-client/internal/model"
)

// Store is the normalized in-memory representation of campaigns, websites and
// submissions. Every mutation carries a marker (a monotonic sequence number);
// updates older than the entity's current marker are discarded, which is what
// keeps push frames, poll results and optimistic writes from racing each
// other. Status strings are normalized once, here, at the boundary.
type Store struct {
	mu          sync.RWMutex
	seq         int64
	campaigns   map[string]*model.Campaign
	websites    map[string]*model.Website
	submissions map[string]*model.Submission

	campaignWebsites    map[string]map[string]struct{}
	campaignSubmissions map[string]map[string]struct{}

	markers  map[string]int64
	activity []model.ActivityLogEntry

	onChange func(model.Campaign)
}

func New() *Store {
	return &Store{
		campaigns:           make(map[string]*model.Campaign),
		websites:            make(map[string]*model.Website),
		submissions:         make(map[string]*model.Submission),
		campaignWebsites:    make(map[string]map[string]struct{}),
		campaignSubmissions: make(map[string]map[string]struct{}),
		markers:             make(map[string]int64),
	}
}

// SetOnChange registers a hook invoked (outside the store lock) after every
// accepted campaign mutation. The progress history hangs off this.
func (s *Store) SetOnChange(fn func(model.Campaign)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// NextMarker returns a marker strictly greater than every marker the store has
// seen, including server-assigned sequence numbers. Used for optimistic writes
// and for inbound events that arrive without a sequence of their own.
func (s *Store) NextMarker() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// admit reports whether marker wins against the entity's current marker and
// records it if so. Callers hold s.mu.
func (s *Store) admit(id string, marker int64) bool {
	if marker <= s.markers[id] {
		return false
	}
	s.markers[id] = marker
	if marker > s.seq {
		s.seq = marker
	}
	return true
}

// PutCampaign inserts or replaces a campaign wholesale. Returns false when the
// marker is stale and the write was discarded.
func (s *Store) PutCampaign(c model.Campaign, marker int64) bool {
	c.Status = model.NormalizeStatus(string(c.Status))
	clampCounters(&c)

	s.mu.Lock()
	if !s.admit(c.ID, marker) {
		s.mu.Unlock()
		return false
	}
	s.campaigns[c.ID] = &c
	if s.campaignWebsites[c.ID] == nil {
		s.campaignWebsites[c.ID] = make(map[string]struct{})
	}
	if s.campaignSubmissions[c.ID] == nil {
		s.campaignSubmissions[c.ID] = make(map[string]struct{})
	}
	hook := s.onChange
	snapshot := c
	s.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
	return true
}

// ApplyCampaignUpdate patches an existing campaign from a loosely typed
// updates map (the push envelope format). Updates for unknown campaigns are
// dropped; the next resync poll will bring the full record.
func (s *Store) ApplyCampaignUpdate(id string, updates map[string]any, marker int64) bool {
	s.mu.Lock()
	existing, ok := s.campaigns[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if !s.admit(id, marker) {
		s.mu.Unlock()
		return false
	}
	c := *existing
	patchCampaign(&c, updates)
	clampCounters(&c)
	s.campaigns[id] = &c
	hook := s.onChange
	snapshot := c
	s.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
	return true
}

func (s *Store) PutWebsite(w model.Website, marker int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admit(w.ID, marker) {
		return false
	}
	s.websites[w.ID] = &w
	if s.campaignWebsites[w.CampaignID] == nil {
		s.campaignWebsites[w.CampaignID] = make(map[string]struct{})
	}
	s.campaignWebsites[w.CampaignID][w.ID] = struct{}{}
	return true
}

func (s *Store) PutSubmission(sub model.Submission, marker int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putSubmissionLocked(sub, marker)
}

func (s *Store) putSubmissionLocked(sub model.Submission, marker int64) bool {
	if !s.admit(sub.ID, marker) {
		return false
	}
	s.submissions[sub.ID] = &sub
	if s.campaignSubmissions[sub.CampaignID] == nil {
		s.campaignSubmissions[sub.CampaignID] = make(map[string]struct{})
	}
	s.campaignSubmissions[sub.CampaignID][sub.ID] = struct{}{}
	return true
}

// ApplySubmissionUpdate patches a submission, creating it when unseen:
// submissions routinely show up first as push events while a campaign runs.
func (s *Store) ApplySubmissionUpdate(campaignID, subID string, updates map[string]any, marker int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := model.Submission{ID: subID, CampaignID: campaignID, Status: model.SubmissionPending}
	if existing, ok := s.submissions[subID]; ok {
		base = *existing
	}
	patchSubmission(&base, updates)
	return s.putSubmissionLocked(base, marker)
}

func (s *Store) Campaign(id string) (model.Campaign, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return model.Campaign{}, false
	}
	return *c, true
}

// Campaigns returns all campaigns, newest first.
func (s *Store) Campaigns() []model.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Websites(campaignID string) []model.Website {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Website, 0, len(s.campaignWebsites[campaignID]))
	for id := range s.campaignWebsites[campaignID] {
		if w, ok := s.websites[id]; ok {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

func (s *Store) Submission(id string) (model.Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return model.Submission{}, false
	}
	return *sub, true
}

func (s *Store) Submissions(campaignID string) []model.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Submission, 0, len(s.campaignSubmissions[campaignID]))
	for id := range s.campaignSubmissions[campaignID] {
		if sub, ok := s.submissions[id]; ok {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeleteCampaign removes the campaign and everything it owns. Deletes cascade
// fully or not at all; there are no partial deletes.
func (s *Store) DeleteCampaign(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for wid := range s.campaignWebsites[id] {
		delete(s.websites, wid)
		delete(s.markers, wid)
	}
	for sid := range s.campaignSubmissions[id] {
		delete(s.submissions, sid)
		delete(s.markers, sid)
	}
	delete(s.campaignWebsites, id)
	delete(s.campaignSubmissions, id)
	delete(s.campaigns, id)
	delete(s.markers, id)
}

// DeleteSubmission removes one submission, its marker, and its campaign index
// entry. Used when the server reports the submission gone.
func (s *Store) DeleteSubmission(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return
	}
	if set := s.campaignSubmissions[sub.CampaignID]; set != nil {
		delete(set, id)
	}
	delete(s.submissions, id)
	delete(s.markers, id)
}

// AppendActivity records display-only log entries. Append-only by contract.
func (s *Store) AppendActivity(entries ...model.ActivityLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, entries...)
}

// Activity returns up to limit most recent entries, optionally filtered to one
// campaign. limit <= 0 means no limit.
func (s *Store) Activity(campaignID string, limit int) []model.ActivityLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.ActivityLogEntry{}
	for i := len(s.activity) - 1; i >= 0; i-- {
		e := s.activity[i]
		if campaignID != "" && e.CampaignID != campaignID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	// reverse back to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// LatestActivityTime returns the timestamp of the newest entry for a
// campaign, so pollers can append only what they haven't seen.
func (s *Store) LatestActivityTime(campaignID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	for _, e := range s.activity {
		if campaignID != "" && e.CampaignID != campaignID {
			continue
		}
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest
}

// Marker exposes an entity's current marker. Mostly for tests and debugging.
func (s *Store) Marker(id string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markers[id]
}

// clampCounters enforces the counter invariants:
// 0 <= processed <= total_websites and successful+failed <= processed.
// When a payload violates them, processed is raised to cover the outcomes and
// the outcome counts are trimmed (failed first) if they would exceed the
// campaign's fixed total.
func clampCounters(c *model.Campaign) {
	if c.TotalWebsites < 0 {
		c.TotalWebsites = 0
	}
	if c.Processed < 0 {
		c.Processed = 0
	}
	if c.Successful < 0 {
		c.Successful = 0
	}
	if c.Failed < 0 {
		c.Failed = 0
	}
	if c.EmailFallback < 0 {
		c.EmailFallback = 0
	}
	if c.Successful > c.TotalWebsites {
		c.Successful = c.TotalWebsites
	}
	if c.Successful+c.Failed > c.TotalWebsites {
		c.Failed = c.TotalWebsites - c.Successful
	}
	if c.Processed < c.Successful+c.Failed {
		c.Processed = c.Successful + c.Failed
	}
	if c.Processed > c.TotalWebsites {
		c.Processed = c.TotalWebsites
	}
}
