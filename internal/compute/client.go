package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DispatchRequest is the payload forwarded to the external GPU compute
// backend. The backend reports back asynchronously by POSTing events to
// WebhookURL + "/{id}/events", where id is the run id it returned from
// Dispatch, using WebhookToken as the bearer credential. The run id cannot
// be part of the URL up front because the backend assigns it.
type DispatchRequest struct {
	JobID        string          `json:"jobId"`
	JobType      string          `json:"jobType"`
	Params       json.RawMessage `json:"params"`
	WebhookURL   string          `json:"webhookUrl"`
	WebhookToken string          `json:"webhookToken"`
}

// Backend dispatches generation work to an external compute provider and
// returns the provider-assigned handle used to correlate webhook deliveries.
type Backend interface {
	Dispatch(ctx context.Context, req DispatchRequest) (string, error)
}

type dispatchResponse struct {
	ID string `json:"id"`
}

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// Make sure we conform to Backend interface
var _ Backend = (*Client)(nil)

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("dispatching job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("compute backend returned %d: %s", resp.StatusCode, string(msg))
	}

	var dr dispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("decoding dispatch response: %w", err)
	}
	if dr.ID == "" {
		return "", fmt.Errorf("compute backend returned an empty run id")
	}

	return dr.ID, nil
}
