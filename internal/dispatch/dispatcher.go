// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/formreach-client/internal/api"
	"github.com/unclebandit/formreach-client/internal/apperrors"
	"github.com/unclebandit/formreach-client/internal/lifecycle"
	"github.com/unclebandit/formreach-client/internal/model"
	"github.com/unclebandit/formreach-client/internal/store"
)

// APIClient is the slice of the REST client the dispatcher needs. An interface
// so tests can hand in a fake that counts calls.
type APIClient interface {
	StartCampaign(ctx context.Context, id string) (model.Campaign, error)
	PauseCampaign(ctx context.Context, id string) (model.Campaign, error)
	StopCampaign(ctx context.Context, id string) (model.Campaign, error)
	DeleteCampaign(ctx context.Context, id string) error
	DuplicateCampaign(ctx context.Context, id string) (model.Campaign, error)
	RetrySubmission(ctx context.Context, id string) (model.Submission, error)
	BatchDelete(ctx context.Context, ids []string) (api.BatchResult, error)
	BatchUpdateStatus(ctx context.Context, ids []string, status model.Status) (api.BatchResult, error)
}

var _ APIClient = (*api.Client)(nil)

// Dispatcher executes lifecycle and bulk commands: local guard first, then an
// optimistic store mutation, then exactly one network call, then reconcile or
// rollback. Commands for the same campaign are serialized; different campaigns
// run concurrently.
type Dispatcher struct {
	Store  *store.Store
	API    APIClient
	Logger *zap.Logger

	// Timeout bounds each network command. On timeout the optimistic mutation
	// is rolled back and a NetworkError surfaces.
	Timeout time.Duration

	// RetryDelay is the fallback wait before the single automatic retry of a
	// rate-limited command, when the server sends no Retry-After.
	RetryDelay time.Duration

	// OnAuthError, when set, runs once per command that fails with AuthError.
	// This is the session-teardown hook; no other error kind escapes the
	// dispatcher with a global side effect.
	OnAuthError func(error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st *store.Store, apiClient APIClient, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		Store:      st,
		API:        apiClient,
		Logger:     logger,
		Timeout:    15 * time.Second,
		RetryDelay: time.Second,
		locks:      make(map[string]*sync.Mutex),
	}
}

// campaignLock returns the serialization mutex for one campaign id.
func (d *Dispatcher) campaignLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	mu, ok := d.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		d.locks[id] = mu
	}
	return mu
}

func (d *Dispatcher) Start(ctx context.Context, id string) error {
	return d.lifecycleCommand(ctx, id, lifecycle.ActionStart, d.API.StartCampaign)
}

func (d *Dispatcher) Pause(ctx context.Context, id string) error {
	return d.lifecycleCommand(ctx, id, lifecycle.ActionPause, d.API.PauseCampaign)
}

func (d *Dispatcher) Stop(ctx context.Context, id string) error {
	return d.lifecycleCommand(ctx, id, lifecycle.ActionStop, d.API.StopCampaign)
}

func (d *Dispatcher) lifecycleCommand(ctx context.Context, id string, action lifecycle.Action,
	call func(context.Context, string) (model.Campaign, error)) error {

	mu := d.campaignLock(id)
	mu.Lock()
	defer mu.Unlock()

	current, ok := d.Store.Campaign(id)
	if !ok {
		return apperrors.NewNotFound("campaign", id)
	}
	next, changed, err := lifecycle.Apply(current.Status, action)
	if err != nil {
		return err // rejected locally, no network call
	}
	if !changed {
		return nil // idempotent no-op, no network call
	}

	prev := current
	optimistic := current
	optimistic.Status = next
	now := time.Now()
	optimistic.UpdatedAt = now
	if action == lifecycle.ActionStart && optimistic.StartedAt == nil {
		optimistic.StartedAt = &now
	}
	d.Store.PutCampaign(optimistic, d.Store.NextMarker())

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	confirmed, err := retryOnce(cctx, d.RetryDelay, func(ctx context.Context) (model.Campaign, error) {
		return call(ctx, id)
	})
	if err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			// the server no longer knows this campaign; restoring prev would
			// resurrect it
			d.Store.DeleteCampaign(id)
			return d.observe(err)
		}
		d.rollbackCampaign(prev, string(action), err)
		return d.observe(err)
	}
	d.Store.PutCampaign(confirmed, d.Store.NextMarker())
	return nil
}

// Delete removes a campaign after server confirmation. Destructive: requires
// the confirmed flag from an explicit prior confirmation step, and is never
// auto-retried.
func (d *Dispatcher) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.NewValidation("confirm", "delete requires explicit confirmation")
	}
	mu := d.campaignLock(id)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := d.Store.Campaign(id); !ok {
		return apperrors.NewNotFound("campaign", id)
	}

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	if err := d.API.DeleteCampaign(cctx, id); err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			// already gone server-side; converge
			d.Store.DeleteCampaign(id)
			return nil
		}
		return d.observe(err)
	}
	d.Store.DeleteCampaign(id)
	return nil
}

// Duplicate creates a DRAFT copy of a campaign's configuration. A placeholder
// with a locally generated id keeps the UI responsive until the server hands
// back the real record.
func (d *Dispatcher) Duplicate(ctx context.Context, id string) (model.Campaign, error) {
	mu := d.campaignLock(id)
	mu.Lock()
	defer mu.Unlock()

	source, ok := d.Store.Campaign(id)
	if !ok {
		return model.Campaign{}, apperrors.NewNotFound("campaign", id)
	}

	placeholder := model.Campaign{
		ID:            uuid.NewString(),
		Name:          source.Name + " (copy)",
		Status:        model.StatusDraft,
		TotalWebsites: source.TotalWebsites,
		CSVFilename:   source.CSVFilename,
		Message:       source.Message,
		UseCaptcha:    source.UseCaptcha,
		Proxy:         source.Proxy,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	d.Store.PutCampaign(placeholder, d.Store.NextMarker())

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	confirmed, err := retryOnce(cctx, d.RetryDelay, func(ctx context.Context) (model.Campaign, error) {
		return d.API.DuplicateCampaign(ctx, id)
	})
	d.Store.DeleteCampaign(placeholder.ID)
	if err != nil {
		d.Logger.Warn("duplicate rolled back", zap.String("campaign_id", id), zap.Error(err))
		return model.Campaign{}, d.observe(err)
	}
	d.Store.PutCampaign(confirmed, d.Store.NextMarker())
	return confirmed, nil
}

// RetrySubmission re-queues a failed submission. The existing record is
// mutated in place (status back to pending, retry_count incremented) rather
// than a second record being created, so failure analytics never double-count
// an attempt.
func (d *Dispatcher) RetrySubmission(ctx context.Context, submissionID string) error {
	sub, ok := d.Store.Submission(submissionID)
	if !ok {
		return apperrors.NewNotFound("submission", submissionID)
	}

	mu := d.campaignLock(sub.CampaignID)
	mu.Lock()
	defer mu.Unlock()

	// re-read under the lock: another command on this campaign may have
	// changed the submission between the first read and here
	sub, ok = d.Store.Submission(submissionID)
	if !ok {
		return apperrors.NewNotFound("submission", submissionID)
	}
	if sub.Status != model.SubmissionFailed {
		return apperrors.NewConflict("cannot retry submission in status %s", sub.Status)
	}

	prev := sub
	optimistic := sub
	optimistic.Status = model.SubmissionPending
	optimistic.Success = false
	optimistic.RetryCount++
	optimistic.ErrorType = ""
	optimistic.ErrorMessage = ""
	d.Store.PutSubmission(optimistic, d.Store.NextMarker())

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	confirmed, err := retryOnce(cctx, d.RetryDelay, func(ctx context.Context) (model.Submission, error) {
		return d.API.RetrySubmission(ctx, submissionID)
	})
	if err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			d.Store.DeleteSubmission(submissionID)
			return d.observe(err)
		}
		d.Store.PutSubmission(prev, d.Store.NextMarker())
		d.Logger.Warn("submission retry rolled back",
			zap.String("submission_id", submissionID), zap.Error(err))
		return d.observe(err)
	}
	d.Store.PutSubmission(confirmed, d.Store.NextMarker())
	return nil
}

// BatchDelete issues one network call for the whole id set, regardless of
// selection size, and removes only the ids the server reports as deleted.
// Destructive: confirmation required, no automatic retry.
func (d *Dispatcher) BatchDelete(ctx context.Context, ids []string, confirmed bool) (api.BatchResult, error) {
	if !confirmed {
		return api.BatchResult{}, apperrors.NewValidation("confirm", "batch delete requires explicit confirmation")
	}
	unlock := d.lockAll(ids)
	defer unlock()

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	res, err := d.API.BatchDelete(cctx, ids)
	if err != nil {
		return api.BatchResult{}, d.observe(err)
	}
	for _, id := range res.Succeeded {
		d.Store.DeleteCampaign(id)
	}
	for _, f := range res.Failed {
		d.Logger.Warn("batch delete partial failure",
			zap.String("campaign_id", f.ID), zap.String("reason", f.Reason))
	}
	return res, nil
}

// batchActions maps a batch target status to the lifecycle action that would
// produce it, so batch updates are guarded by the same transition table as
// single commands.
var batchActions = map[model.Status]lifecycle.Action{
	model.StatusRunning: lifecycle.ActionStart,
	model.StatusPaused:  lifecycle.ActionPause,
	model.StatusStopped: lifecycle.ActionStop,
}

func guardBatchTarget(current, target model.Status) error {
	if action, ok := batchActions[target]; ok {
		_, _, err := lifecycle.Apply(current, action)
		return err
	}
	if current.IsTerminal() {
		return apperrors.NewConflict("campaign in status %s accepts no further transitions", current)
	}
	return nil
}

// BatchUpdateStatus applies one status to many campaigns in a single call.
// Ids whose transition the state machine rejects are dropped locally and
// reported as failures without ever reaching the server. The optimistic status
// sticks for ids the server accepts and is rolled back for the rest.
func (d *Dispatcher) BatchUpdateStatus(ctx context.Context, ids []string, status model.Status) (api.BatchResult, error) {
	status = model.NormalizeStatus(string(status))
	unlock := d.lockAll(ids)
	defer unlock()

	prev := make(map[string]model.Campaign, len(ids))
	send := make([]string, 0, len(ids))
	var rejected []api.BatchFailure
	for _, id := range ids {
		c, ok := d.Store.Campaign(id)
		if !ok {
			// unknown locally; the server decides
			send = append(send, id)
			continue
		}
		if err := guardBatchTarget(c.Status, status); err != nil {
			rejected = append(rejected, api.BatchFailure{ID: id, Reason: err.Error()})
			continue
		}
		prev[id] = c
		optimistic := c
		optimistic.Status = status
		optimistic.UpdatedAt = time.Now()
		d.Store.PutCampaign(optimistic, d.Store.NextMarker())
		send = append(send, id)
	}
	if len(send) == 0 {
		return api.BatchResult{Failed: rejected}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	res, err := retryOnce(cctx, d.RetryDelay, func(ctx context.Context) (api.BatchResult, error) {
		return d.API.BatchUpdateStatus(ctx, send, status)
	})
	if err != nil {
		for _, c := range prev {
			d.rollbackCampaign(c, "batch-status", err)
		}
		return api.BatchResult{}, d.observe(err)
	}
	for _, f := range res.Failed {
		if c, ok := prev[f.ID]; ok {
			d.rollbackCampaign(c, "batch-status", errors.New(f.Reason))
		}
	}
	res.Failed = append(res.Failed, rejected...)
	return res, nil
}

func (d *Dispatcher) rollbackCampaign(prev model.Campaign, command string, cause error) {
	d.Store.PutCampaign(prev, d.Store.NextMarker())
	d.Logger.Warn("optimistic update rolled back",
		zap.String("campaign_id", prev.ID),
		zap.String("command", command),
		zap.Error(cause))
}

func (d *Dispatcher) lockAll(ids []string) func() {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	locked := make([]*sync.Mutex, 0, len(sorted))
	seen := map[string]bool{}
	for _, id := range sorted {
		if seen[id] {
			continue
		}
		seen[id] = true
		mu := d.campaignLock(id)
		mu.Lock()
		locked = append(locked, mu)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

func (d *Dispatcher) observe(err error) error {
	var auth *apperrors.AuthError
	if errors.As(err, &auth) && d.OnAuthError != nil {
		d.OnAuthError(err)
	}
	return err
}

// retryOnce runs fn, retrying exactly one time if the first attempt was rate
// limited. Every other error kind surfaces immediately.
func retryOnce[T any](ctx context.Context, fallbackDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	out, err := fn(ctx)
	var rl *apperrors.RateLimitError
	if err == nil || !errors.As(err, &rl) {
		return out, err
	}
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = fallbackDelay
	}
	select {
	case <-ctx.Done():
		return out, apperrors.NewNetwork("rate limit wait", ctx.Err())
	case <-time.After(wait):
	}
	return fn(ctx)
}
