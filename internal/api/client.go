// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/unclebandit/formreach-client/internal/apperrors"
	"github.com/unclebandit/formreach-client/internal/model"
)

// Client talks to the FormReach backend REST surface. The session token is
// passed in explicitly rather than read from ambient state so tests can
// construct clients deterministically.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type CreateCampaignRequest struct {
	Name        string   `json:"name"`
	Message     string   `json:"message"`
	CSVFilename string   `json:"csv_filename,omitempty"`
	UseCaptcha  bool     `json:"use_captcha"`
	Proxy       string   `json:"proxy,omitempty"`
	Domains     []string `json:"domains,omitempty"`
}

// BatchResult reports per-id outcomes of a batch command.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

type BatchFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (c *Client) ListCampaigns(ctx context.Context, status string) ([]model.Campaign, error) {
	path := "/campaigns"
	if status != "" {
		path += "?status=" + status
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Campaign
	if err := decodeList(body, []string{"campaigns"}, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Status = model.NormalizeStatus(string(out[i].Status))
	}
	return out, nil
}

func (c *Client) GetCampaign(ctx context.Context, id string) (model.Campaign, error) {
	body, err := c.do(ctx, http.MethodGet, "/campaigns/"+id, nil)
	if err != nil {
		return model.Campaign{}, err
	}
	return decodeCampaign(body)
}

func (c *Client) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (model.Campaign, error) {
	body, err := c.do(ctx, http.MethodPost, "/campaigns", req)
	if err != nil {
		return model.Campaign{}, err
	}
	return decodeCampaign(body)
}

func (c *Client) UpdateCampaign(ctx context.Context, id string, updates map[string]any) (model.Campaign, error) {
	body, err := c.do(ctx, http.MethodPatch, "/campaigns/"+id, updates)
	if err != nil {
		return model.Campaign{}, err
	}
	return decodeCampaign(body)
}

func (c *Client) StartCampaign(ctx context.Context, id string) (model.Campaign, error) {
	return c.lifecycle(ctx, id, "start")
}

func (c *Client) PauseCampaign(ctx context.Context, id string) (model.Campaign, error) {
	return c.lifecycle(ctx, id, "pause")
}

func (c *Client) StopCampaign(ctx context.Context, id string) (model.Campaign, error) {
	return c.lifecycle(ctx, id, "stop")
}

func (c *Client) lifecycle(ctx context.Context, id, action string) (model.Campaign, error) {
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/campaigns/%s/%s", id, action), nil)
	if err != nil {
		return model.Campaign{}, err
	}
	return decodeCampaign(body)
}

func (c *Client) DeleteCampaign(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/campaigns/"+id, nil)
	return err
}

func (c *Client) DuplicateCampaign(ctx context.Context, id string) (model.Campaign, error) {
	body, err := c.do(ctx, http.MethodPost, "/campaigns/"+id+"/duplicate", nil)
	if err != nil {
		return model.Campaign{}, err
	}
	return decodeCampaign(body)
}

func (c *Client) ListWebsites(ctx context.Context, campaignID string) ([]model.Website, error) {
	body, err := c.do(ctx, http.MethodGet, "/campaigns/"+campaignID+"/websites", nil)
	if err != nil {
		return nil, err
	}
	var out []model.Website
	if err := decodeList(body, []string{"websites"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSubmissions(ctx context.Context, campaignID string) ([]model.Submission, error) {
	body, err := c.do(ctx, http.MethodGet, "/campaigns/"+campaignID+"/submissions", nil)
	if err != nil {
		return nil, err
	}
	var out []model.Submission
	if err := decodeList(body, []string{"submissions"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RetrySubmission(ctx context.Context, id string) (model.Submission, error) {
	body, err := c.do(ctx, http.MethodPost, "/submissions/"+id+"/retry", nil)
	if err != nil {
		return model.Submission{}, err
	}
	var sub model.Submission
	if err := decodeObject(body, &sub); err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

func (c *Client) BatchDelete(ctx context.Context, ids []string) (BatchResult, error) {
	return c.batch(ctx, "/campaigns/batch-delete", map[string]any{"ids": ids})
}

func (c *Client) BatchUpdateStatus(ctx context.Context, ids []string, status model.Status) (BatchResult, error) {
	return c.batch(ctx, "/campaigns/batch-status", map[string]any{"ids": ids, "status": status})
}

func (c *Client) batch(ctx context.Context, path string, payload map[string]any) (BatchResult, error) {
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return BatchResult{}, err
	}
	var res BatchResult
	if err := decodeObject(body, &res); err != nil {
		return BatchResult{}, err
	}
	return res, nil
}

func (c *Client) Activity(ctx context.Context, campaignID string) ([]model.ActivityLogEntry, error) {
	body, err := c.do(ctx, http.MethodGet, "/campaigns/"+campaignID+"/activity", nil)
	if err != nil {
		return nil, err
	}
	var out []model.ActivityLogEntry
	if err := decodeList(body, []string{"activity", "entries"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserAnalytics fetches the server-side analytics summary. The client-side
// rollup engine is authoritative for per-campaign views; this is the account
// wide dashboard payload.
func (c *Client) UserAnalytics(ctx context.Context) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, "/analytics/user", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.NewNetwork("decode analytics", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.NewValidation("", "unencodable request payload: "+err.Error())
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, apperrors.NewNetwork(method+" "+path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork(method+" "+path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetwork(method+" "+path, err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &apperrors.RateLimitError{RetryAfter: retryAfter(resp)}
		}
		return nil, apperrors.FromStatusCode(resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// errorMessage pulls a human-readable reason out of an error body. Backends
// have shipped {"error": ...}, {"message": ...} and bare strings.
func errorMessage(body []byte) string {
	var wrapped struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Error != "" {
			return wrapped.Error
		}
		if wrapped.Message != "" {
			return wrapped.Message
		}
	}
	return string(body)
}
