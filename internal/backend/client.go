package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"invoice-console/internal/workflows"
)

const maxResponseBytes = 16 << 20 // 16MB

// Client is the workflow backend as seen by the console views.
type Client interface {
	ListWorkflows(ctx context.Context) ([]workflows.Record, error)
	DeleteWorkflow(ctx context.Context, threadID string) error
	RunWorkflow(ctx context.Context, payload Multipart) (RunResult, error)
	PendingReviews(ctx context.Context) ([]workflows.ReviewItem, error)
	SubmitDecision(ctx context.Context, req DecisionRequest) (DecisionResult, error)
	WorkflowStatus(ctx context.Context, threadID string) (StatusResult, error)
}

// Multipart is an encoded multipart/form-data request body.
type Multipart struct {
	ContentType string
	Body        []byte
}

// RunResult is the backend response to POST /workflow/run.
type RunResult struct {
	ThreadID     string `json:"thread_id"`
	Status       string `json:"status"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
	ReviewURL    string `json:"review_url,omitempty"`
	Message      string `json:"message"`
}

// Paused reports whether the new workflow is waiting for human review.
func (r RunResult) Paused() bool {
	return strings.EqualFold(r.Status, string(workflows.StatusPaused))
}

// DecisionRequest is the body of POST /human-review/decision.
type DecisionRequest struct {
	CheckpointID string             `json:"checkpoint_id"`
	Decision     workflows.Decision `json:"decision"`
	Notes        string             `json:"notes"`
	ReviewerID   string             `json:"reviewer_id"`
}

// DecisionResult acknowledges a submitted decision.
type DecisionResult struct {
	ResumeToken string `json:"resume_token,omitempty"`
	NextStage   string `json:"next_stage,omitempty"`
	Message     string `json:"message,omitempty"`
}

// StatusResult is the backend response to GET /workflow/status/{thread_id}.
type StatusResult struct {
	ThreadID     string `json:"thread_id"`
	Status       string `json:"status"`
	CurrentStage string `json:"current_stage,omitempty"`
	Paused       bool   `json:"paused"`
	Complete     bool   `json:"complete"`
}

// HTTPClient talks to the backend over HTTP.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// New constructs an HTTPClient. A nil httpClient gets a 30s timeout client.
func New(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

func (c *HTTPClient) ListWorkflows(ctx context.Context) ([]workflows.Record, error) {
	var resp struct {
		Workflows []workflows.Record `json:"workflows"`
		Total     int                `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/workflow/all", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Workflows == nil {
		return []workflows.Record{}, nil
	}
	return resp.Workflows, nil
}

func (c *HTTPClient) DeleteWorkflow(ctx context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrThreadIDRequired
	}
	return c.do(ctx, http.MethodDelete, "/workflow/"+url.PathEscape(threadID), nil, "", nil)
}

func (c *HTTPClient) RunWorkflow(ctx context.Context, payload Multipart) (RunResult, error) {
	var out RunResult
	err := c.do(ctx, http.MethodPost, "/workflow/run", bytes.NewReader(payload.Body), payload.ContentType, &out)
	return out, err
}

func (c *HTTPClient) PendingReviews(ctx context.Context) ([]workflows.ReviewItem, error) {
	var resp struct {
		Items []workflows.ReviewItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/human-review/pending", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []workflows.ReviewItem{}, nil
	}
	return resp.Items, nil
}

func (c *HTTPClient) SubmitDecision(ctx context.Context, req DecisionRequest) (DecisionResult, error) {
	if strings.TrimSpace(req.CheckpointID) == "" {
		return DecisionResult{}, ErrCheckpointIDRequired
	}
	body, err := json.Marshal(req)
	if err != nil {
		return DecisionResult{}, err
	}
	var out DecisionResult
	err = c.do(ctx, http.MethodPost, "/human-review/decision", bytes.NewReader(body), "application/json", &out)
	return out, err
}

func (c *HTTPClient) WorkflowStatus(ctx context.Context, threadID string) (StatusResult, error) {
	if strings.TrimSpace(threadID) == "" {
		return StatusResult{}, ErrThreadIDRequired
	}
	var out StatusResult
	err := c.do(ctx, http.MethodGet, "/workflow/status/"+url.PathEscape(threadID), nil, "", &out)
	return out, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newAPIError(res.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
