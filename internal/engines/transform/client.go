// Package transform wraps the ETL engine's job API.
package transform

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

	"github.com/flowdeck/console/internal/engines"
)

// JobRequest describes an ETL job submission.
type JobRequest struct {
	WorkflowID string            `json:"workflow_id"`
	NodeID     string            `json:"node_id,omitempty"`
	Definition map[string]any    `json:"definition"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Job is the engine's view of a submitted job.
type Job struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Preview holds sample rows produced by a single transform step.
type Preview struct {
	StepID  string           `json:"step_id"`
	Columns []string         `json:"columns"`
	Rows    [][]any          `json:"rows"`
	Stats   map[string]int64 `json:"stats,omitempty"`
}

// Client calls the ETL engine.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a transform engine client.
func NewClient(cfg engines.Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = engines.DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

// SubmitJob submits a job for execution and returns the engine's job record.
func (c *Client) SubmitJob(ctx context.Context, req *JobRequest) (*Job, error) {
	var job Job
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobStatus retrieves the current state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	path := "/api/v1/jobs/" + url.PathEscape(jobID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// PreviewStep executes a single step against sample data and returns
// up to rows result rows.
func (c *Client) PreviewStep(ctx context.Context, jobID, stepID string, rows int) (*Preview, error) {
	var preview Preview
	path := fmt.Sprintf("/api/v1/jobs/%s/steps/%s/preview?rows=%d",
		url.PathEscape(jobID), url.PathEscape(stepID), rows)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// doJSON executes a request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &engines.Error{
			Engine:     "transform",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
