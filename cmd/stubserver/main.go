// cmd/stubserver/main.go
//
// In-memory FormReach backend stub: implements the REST and websocket surface
// the client consumes, with a simulated worker that drives running campaigns
// to completion. For development and demos; keeps no state across restarts.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/unclebandit/formreach-client/internal/lifecycle"
	"github.com/unclebandit/formreach-client/internal/model"
	"github.com/unclebandit/formreach-client/internal/realtime"
)

var sampleDomains = []string{
	"acme-plumbing.example.com", "northside-dental.example.com",
	"blue-harbor-cafe.example.com", "summit-roofing.example.com",
	"riverbend-law.example.com", "gold-leaf-florist.example.com",
	"cedar-grove-vets.example.com", "brightpath-tutors.example.com",
	"oakwood-realty.example.com", "hilltop-bakery.example.com",
	"lakeside-auto.example.com", "pinecrest-yoga.example.com",
}

var errorTypes = []string{"Timeout", "CAPTCHA Failed", "No Form Found", "Connection Refused"}

type stub struct {
	mu                 sync.Mutex
	seq                int64
	campaigns          map[string]*model.Campaign
	websitesByCampaign map[string][]*model.Website
	submissions        map[string]*model.Submission
	subsByCampaign     map[string][]string
	activity           map[string][]model.ActivityLogEntry
	conns              map[*websocket.Conn]struct{}

	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func newStub(logger *zap.Logger) *stub {
	return &stub{
		campaigns:          make(map[string]*model.Campaign),
		websitesByCampaign: make(map[string][]*model.Website),
		submissions:        make(map[string]*model.Submission),
		subsByCampaign:     make(map[string][]string),
		activity:           make(map[string][]model.ActivityLogEntry),
		conns:              make(map[*websocket.Conn]struct{}),
		logger:             logger,
		upgrader:           websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	s := newStub(logger)
	s.seed()
	go s.worker()

	r := chi.NewRouter()
	r.Get("/campaigns", s.listCampaigns)
	r.Post("/campaigns", s.createCampaign)
	r.Get("/campaigns/{id}", s.getCampaign)
	r.Patch("/campaigns/{id}", s.patchCampaign)
	r.Delete("/campaigns/{id}", s.deleteCampaign)
	r.Post("/campaigns/{id}/start", s.lifecycleHandler(lifecycle.ActionStart))
	r.Post("/campaigns/{id}/pause", s.lifecycleHandler(lifecycle.ActionPause))
	r.Post("/campaigns/{id}/stop", s.lifecycleHandler(lifecycle.ActionStop))
	r.Post("/campaigns/{id}/duplicate", s.duplicateCampaign)
	r.Get("/campaigns/{id}/websites", s.listWebsites)
	r.Get("/campaigns/{id}/submissions", s.listSubmissions)
	r.Get("/campaigns/{id}/activity", s.listActivity)
	r.Post("/submissions/{id}/retry", s.retrySubmission)
	r.Post("/campaigns/batch-delete", s.batchDelete)
	r.Post("/campaigns/batch-status", s.batchStatus)
	r.Get("/analytics/user", s.userAnalytics)
	r.Get("/ws", s.websocketHandler)

	logger.Info("stub backend listening", zap.String("addr", ":8080"))
	if err := http.ListenAndServe(":8080", r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func (s *stub) seed() {
	domains := append([]string(nil), sampleDomains...)
	c := s.newCampaign("Demo outreach", "Hello, we'd love to work with you.", domains, true)
	s.logger.Info("seeded demo campaign", zap.String("id", c.ID))
}

// newCampaign materializes a campaign and its websites. Caller must not hold
// s.mu.
func (s *stub) newCampaign(name, message string, domains []string, useCaptcha bool) *model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c := &model.Campaign{
		ID:            uuid.NewString(),
		Name:          name,
		Status:        model.StatusDraft,
		TotalWebsites: len(domains),
		Message:       message,
		UseCaptcha:    useCaptcha,
		CSVFilename:   "upload.csv",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.campaigns[c.ID] = c
	for _, d := range domains {
		s.websitesByCampaign[c.ID] = append(s.websitesByCampaign[c.ID], &model.Website{
			ID:           uuid.NewString(),
			CampaignID:   c.ID,
			Domain:       d,
			Status:       model.WebsitePending,
			FormDetected: rand.Float64() < 0.9,
			HasCaptcha:   rand.Float64() < 0.3,
			ContactURL:   "https://" + d + "/contact",
		})
	}
	s.logActivityLocked(c.ID, model.LevelInfo, "campaign_created", fmt.Sprintf("campaign %q created with %d websites", name, len(domains)))
	return c
}

// worker advances every RUNNING campaign by one website per tick.
func (s *stub) worker() {
	ticker := time.NewTicker(600 * time.Millisecond)
	for range ticker.C {
		s.mu.Lock()
		for _, c := range s.campaigns {
			if c.Status != model.StatusRunning {
				continue
			}
			s.advanceLocked(c)
		}
		s.mu.Unlock()
	}
}

func (s *stub) advanceLocked(c *model.Campaign) {
	var site *model.Website
	for _, w := range s.websitesByCampaign[c.ID] {
		if w.Status == model.WebsitePending {
			site = w
			break
		}
	}
	if site == nil {
		if c.Processed >= c.TotalWebsites {
			c.Status = model.StatusCompleted
			c.UpdatedAt = time.Now()
			s.logActivityLocked(c.ID, model.LevelInfo, "campaign_completed", "all websites processed")
			s.broadcastCampaignLocked(c)
		}
		return
	}

	success := rand.Float64() < 0.75
	targetURL := "https://" + site.Domain + "/contact"

	// a retried website reuses its submission record instead of growing a
	// second one
	var sub *model.Submission
	for _, sid := range s.subsByCampaign[c.ID] {
		if existing := s.submissions[sid]; existing != nil &&
			existing.Status == model.SubmissionPending && existing.TargetURL == targetURL {
			sub = existing
			break
		}
	}
	fresh := sub == nil
	if fresh {
		sub = &model.Submission{ID: uuid.NewString(), CampaignID: c.ID, TargetURL: targetURL}
	}
	sub.Success = success
	sub.Status = model.SubmissionSuccess
	sub.ContactMethod = "form"
	sub.CaptchaSolved = site.HasCaptcha && success
	sub.ProcessingTime = 0.5 + rand.Float64()*3
	sub.SubmittedAt = time.Now()
	if success {
		site.Status = model.WebsiteSubmitted
		c.Successful++
		if rand.Float64() < 0.15 {
			sub.ContactMethod = "email"
			c.EmailFallback++
		}
	} else {
		errType := errorTypes[rand.Intn(len(errorTypes))]
		sub.Status = model.SubmissionFailed
		sub.ErrorType = errType
		sub.ErrorMessage = errType + " while submitting form"
		site.Status = model.WebsiteFailed
		site.FailureReason = errType
		c.Failed++
		s.logActivityLocked(c.ID, model.LevelWarn, "submission_failed", site.Domain+": "+errType)
	}
	c.Processed++
	c.ProcessingDuration += sub.ProcessingTime
	c.UpdatedAt = time.Now()

	if fresh {
		s.submissions[sub.ID] = sub
		s.subsByCampaign[c.ID] = append(s.subsByCampaign[c.ID], sub.ID)
	}

	s.broadcastLocked(realtime.Event{
		Type:         realtime.EventSubmissionUpdate,
		CampaignID:   c.ID,
		SubmissionID: sub.ID,
		Updates:      submissionUpdates(sub),
	})
	s.broadcastCampaignLocked(c)
}

func (s *stub) broadcastCampaignLocked(c *model.Campaign) {
	s.broadcastLocked(realtime.Event{
		Type:       realtime.EventCampaignUpdate,
		CampaignID: c.ID,
		Updates: map[string]any{
			"status":         string(c.Status),
			"processed":      c.Processed,
			"successful":     c.Successful,
			"failed":         c.Failed,
			"email_fallback": c.EmailFallback,
			"updated_at":     c.UpdatedAt.Format(time.RFC3339),
		},
	})
}

func submissionUpdates(sub *model.Submission) map[string]any {
	return map[string]any{
		"status":          sub.Status,
		"success":         sub.Success,
		"target_url":      sub.TargetURL,
		"contact_method":  sub.ContactMethod,
		"captcha_solved":  sub.CaptchaSolved,
		"error_type":      sub.ErrorType,
		"error_message":   sub.ErrorMessage,
		"retry_count":     sub.RetryCount,
		"processing_time": sub.ProcessingTime,
		"submitted_at":    sub.SubmittedAt.Format(time.RFC3339),
	}
}

func (s *stub) broadcastLocked(ev realtime.Event) {
	s.seq++
	ev.Seq = s.seq
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

func (s *stub) logActivityLocked(campaignID, level, action, message string) {
	s.activity[campaignID] = append(s.activity[campaignID], model.ActivityLogEntry{
		Timestamp:  time.Now(),
		Level:      level,
		Source:     "system",
		Action:     action,
		Message:    message,
		CampaignID: campaignID,
	})
}

// --- HTTP handlers ---

func (s *stub) listCampaigns(w http.ResponseWriter, r *http.Request) {
	status := model.NormalizeStatus(r.URL.Query().Get("status"))
	filter := r.URL.Query().Get("status") != ""

	s.mu.Lock()
	out := []model.Campaign{}
	for _, c := range s.campaigns {
		if filter && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	s.mu.Unlock()

	// the historical list shape: a named key, not a bare array
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out})
}

func (s *stub) createCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string   `json:"name"`
		Message    string   `json:"message"`
		UseCaptcha bool     `json:"use_captcha"`
		Domains    []string `json:"domains"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "name is required"})
		return
	}
	domains := body.Domains
	if len(domains) == 0 {
		domains = sampleDomains
	}
	c := s.newCampaign(body.Name, body.Message, domains, body.UseCaptcha)
	writeJSON(w, http.StatusCreated, c)
}

func (s *stub) getCampaign(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.campaigns[chi.URLParam(r, "id")]
	var out model.Campaign
	if ok {
		out = *c
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "campaign not found"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *stub) patchCampaign(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	c, ok := s.campaigns[chi.URLParam(r, "id")]
	if ok {
		if v, isStr := updates["name"].(string); isStr && v != "" {
			c.Name = v
		}
		if v, isStr := updates["message"].(string); isStr {
			c.Message = v
		}
		if v, isStr := updates["proxy"].(string); isStr {
			c.Proxy = v
		}
		c.UpdatedAt = time.Now()
	}
	var out model.Campaign
	if ok {
		out = *c
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "campaign not found"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *stub) lifecycleHandler(action lifecycle.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		c, ok := s.campaigns[chi.URLParam(r, "id")]
		if !ok {
			s.mu.Unlock()
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "campaign not found"})
			return
		}
		next, changed, err := lifecycle.Apply(c.Status, action)
		if err != nil {
			s.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": fmt.Sprintf("cannot %s campaign in status %s", action, c.Status),
			})
			return
		}
		if changed {
			c.Status = next
			c.UpdatedAt = time.Now()
			if action == lifecycle.ActionStart && c.StartedAt == nil {
				now := time.Now()
				c.StartedAt = &now
			}
			s.logActivityLocked(c.ID, model.LevelInfo, string(action), fmt.Sprintf("campaign %s -> %s", action, next))
			s.broadcastCampaignLocked(c)
		}
		out := *c
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *stub) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.campaigns[id]
	if ok {
		s.removeCampaignLocked(id)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "campaign not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *stub) removeCampaignLocked(id string) {
	for _, sid := range s.subsByCampaign[id] {
		delete(s.submissions, sid)
	}
	delete(s.subsByCampaign, id)
	delete(s.websitesByCampaign, id)
	delete(s.activity, id)
	delete(s.campaigns, id)
}

func (s *stub) duplicateCampaign(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	src, ok := s.campaigns[chi.URLParam(r, "id")]
	var name, message string
	var useCaptcha bool
	var domains []string
	if ok {
		name = src.Name + " (copy)"
		message = src.Message
		useCaptcha = src.UseCaptcha
		for _, site := range s.websitesByCampaign[src.ID] {
			domains = append(domains, site.Domain)
		}
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "campaign not found"})
		return
	}
	c := s.newCampaign(name, message, domains, useCaptcha)
	writeJSON(w, http.StatusCreated, c)
}

func (s *stub) listWebsites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := []model.Website{}
	for _, site := range s.websitesByCampaign[chi.URLParam(r, "id")] {
		out = append(out, *site)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *stub) listSubmissions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := []model.Submission{}
	for _, sid := range s.subsByCampaign[chi.URLParam(r, "id")] {
		if sub, ok := s.submissions[sid]; ok {
			out = append(out, *sub)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *stub) listActivity(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]model.ActivityLogEntry{}, s.activity[chi.URLParam(r, "id")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"activity": out})
}

func (s *stub) retrySubmission(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sub, ok := s.submissions[chi.URLParam(r, "id")]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "submission not found"})
		return
	}
	if sub.Status != model.SubmissionFailed {
		status := sub.Status
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "cannot retry submission in status " + status,
		})
		return
	}
	sub.Status = model.SubmissionPending
	sub.Success = false
	sub.RetryCount++
	sub.ErrorType = ""
	sub.ErrorMessage = ""
	// put the website back in the worker's queue
	for _, site := range s.websitesByCampaign[sub.CampaignID] {
		if "https://"+site.Domain+"/contact" == sub.TargetURL {
			site.Status = model.WebsitePending
			site.FailureReason = ""
			break
		}
	}
	if c, ok := s.campaigns[sub.CampaignID]; ok && c.Failed > 0 {
		c.Failed--
		c.Processed--
		s.broadcastCampaignLocked(c)
	}
	out := *sub
	s.broadcastLocked(realtime.Event{
		Type:         realtime.EventSubmissionUpdate,
		CampaignID:   sub.CampaignID,
		SubmissionID: sub.ID,
		Updates:      submissionUpdates(sub),
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *stub) batchDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	result := map[string]any{}
	succeeded := []string{}
	failed := []map[string]string{}
	s.mu.Lock()
	for _, id := range body.IDs {
		if _, ok := s.campaigns[id]; !ok {
			failed = append(failed, map[string]string{"id": id, "reason": "not found"})
			continue
		}
		s.removeCampaignLocked(id)
		succeeded = append(succeeded, id)
	}
	s.mu.Unlock()
	result["succeeded"] = succeeded
	result["failed"] = failed
	writeJSON(w, http.StatusOK, result)
}

func (s *stub) batchStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	target := model.NormalizeStatus(body.Status)
	succeeded := []string{}
	failed := []map[string]string{}
	s.mu.Lock()
	for _, id := range body.IDs {
		c, ok := s.campaigns[id]
		if !ok {
			failed = append(failed, map[string]string{"id": id, "reason": "not found"})
			continue
		}
		c.Status = target
		c.UpdatedAt = time.Now()
		s.broadcastCampaignLocked(c)
		succeeded = append(succeeded, id)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": succeeded, "failed": failed})
}

func (s *stub) userAnalytics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total, processed, successful, failed := 0, 0, 0, 0
	for _, c := range s.campaigns {
		total++
		processed += c.Processed
		successful += c.Successful
		failed += c.Failed
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"campaigns":  total,
		"processed":  processed,
		"successful": successful,
		"failed":     failed,
	})
}

func (s *stub) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("push client connected", zap.String("remote", conn.RemoteAddr().String()))

	// drain inbound frames so pings and closes are handled
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
