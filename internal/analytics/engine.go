// internal/analytics/engine.go
package analytics

import (
	"github.com/unclebandit/formreach-client/internal/apperrors"
	"github.com/unclebandit/formreach-client/internal/store"
)

// Engine reads the entity store and computes rollups on demand.
type Engine struct {
	Store  *store.Store
	Policy SeverityPolicy
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{Store: st, Policy: DefaultSeverityPolicy()}
}

func (e *Engine) CampaignRollup(campaignID string) (Rollup, error) {
	if _, ok := e.Store.Campaign(campaignID); !ok {
		return Rollup{}, apperrors.NewNotFound("campaign", campaignID)
	}
	return Compute(e.Store.Submissions(campaignID), e.Store.Websites(campaignID), e.Policy), nil
}
