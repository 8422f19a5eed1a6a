// internal/refresh/refresh.go
package refresh

import (
	"context"

	"github.com/unclebandit/formreach-client/internal/api"
	"github.com/unclebandit/formreach-client/internal/store"
)

// Refresher pulls authoritative state over REST into the store. Every write
// goes through a fresh store marker, so a poll result and a push event for the
// same entity resolve by marker comparison, never by arrival order. It doubles
// as the push channel's post-reconnect resync.
type Refresher struct {
	API   *api.Client
	Store *store.Store
}

func New(apiClient *api.Client, st *store.Store) *Refresher {
	return &Refresher{API: apiClient, Store: st}
}

// All fetches the campaign list into the store.
func (r *Refresher) All(ctx context.Context) error {
	campaigns, err := r.API.ListCampaigns(ctx, "")
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		r.Store.PutCampaign(c, r.Store.NextMarker())
	}
	return nil
}

// Campaign fetches one campaign with its websites, submissions and activity.
func (r *Refresher) Campaign(ctx context.Context, id string) error {
	c, err := r.API.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	r.Store.PutCampaign(c, r.Store.NextMarker())

	websites, err := r.API.ListWebsites(ctx, id)
	if err != nil {
		return err
	}
	for _, w := range websites {
		r.Store.PutWebsite(w, r.Store.NextMarker())
	}

	submissions, err := r.API.ListSubmissions(ctx, id)
	if err != nil {
		return err
	}
	for _, s := range submissions {
		r.Store.PutSubmission(s, r.Store.NextMarker())
	}

	activity, err := r.API.Activity(ctx, id)
	if err != nil {
		return err
	}
	// append-only log: only take entries newer than what we already hold
	cutoff := r.Store.LatestActivityTime(id)
	for _, e := range activity {
		if e.Timestamp.After(cutoff) {
			r.Store.AppendActivity(e)
		}
	}
	return nil
}
