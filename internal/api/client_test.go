package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/formreach-client/internal/apperrors"
	"github.com/unclebandit/formreach-client/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second)
}

func TestListCampaignsResponseShapes(t *testing.T) {
	shapes := map[string]string{
		"bare array": `[{"id":"c1","name":"one","status":"RUNNING"}]`,
		"data key":   `{"data":[{"id":"c1","name":"one","status":"RUNNING"}]}`,
		"named key":  `{"campaigns":[{"id":"c1","name":"one","status":"RUNNING"}]}`,
	}
	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			})
			got, err := c.ListCampaigns(context.Background(), "")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "c1", got[0].ID)
			assert.Equal(t, model.StatusRunning, got[0].Status)
		})
	}
}

func TestListCampaignsNormalizesLegacyStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"c1","status":"active"},{"id":"c2","status":"PROCESSING"}]`))
	})
	got, err := c.ListCampaigns(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.StatusRunning, got[0].Status)
	assert.Equal(t, model.StatusRunning, got[1].Status)
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth, gotAccept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"id":"c1","status":"DRAFT"}`))
	})
	_, err := c.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestStatusFilterForwarded(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})
	_, err := c.ListCampaigns(context.Background(), "RUNNING")
	require.NoError(t, err)
	assert.Equal(t, "status=RUNNING", gotQuery)
}

func TestConflictCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"campaign already completed"}`))
	})
	_, err := c.StartCampaign(context.Background(), "c1")

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "campaign already completed", conflict.Message)
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"token expired"}`))
	})
	_, err := c.ListCampaigns(context.Background(), "")

	var auth *apperrors.AuthError
	require.ErrorAs(t, err, &auth)
	assert.Equal(t, "token expired", auth.Message)
}

func TestRateLimitParsesRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.PauseCampaign(context.Background(), "c1")

	var rl *apperrors.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestServerErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})
	_, err := c.GetCampaign(context.Background(), "c1")

	var se *apperrors.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "upstream down", se.Message)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "tok", 500*time.Millisecond)
	_, err := c.ListCampaigns(context.Background(), "")

	var ne *apperrors.NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestBatchDeletePayloadAndResult(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"succeeded":["c1"],"failed":[{"id":"c2","reason":"still running"}]}`))
	})
	res, err := c.BatchDelete(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, "/campaigns/batch-delete", gotPath)
	assert.Equal(t, []string{"c1"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "c2", res.Failed[0].ID)
}

func TestGetCampaignUnwrapsDataEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"c1","name":"wrapped","status":"PAUSED"}}`))
	})
	got, err := c.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "wrapped", got.Name)
	assert.Equal(t, model.StatusPaused, got.Status)
}
