// Package scheduler wraps the smart scheduler's API.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowdeck/console/internal/engines"
)

// ScheduleRequest describes a recurring or one-shot run schedule.
type ScheduleRequest struct {
	WorkflowID string `json:"workflow_id"`
	Cron       string `json:"cron,omitempty"`
	RunAt      string `json:"run_at,omitempty"`
	Priority   int    `json:"priority,omitempty"`
}

// Schedule is the scheduler's view of a registered schedule.
type Schedule struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Cron       string    `json:"cron,omitempty"`
	NextRun    time.Time `json:"next_run"`
	Active     bool      `json:"active"`
}

// Client calls the smart scheduler.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a scheduler client.
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

// ScheduleRun registers a schedule for a workflow.
func (c *Client) ScheduleRun(ctx context.Context, req *ScheduleRequest) (*Schedule, error) {
	var schedule Schedule
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/schedules", req, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// CancelRun removes a schedule.
func (c *Client) CancelRun(ctx context.Context, scheduleID string) error {
	path := "/api/v1/schedules/" + url.PathEscape(scheduleID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// NextRuns returns the next n planned run times for a workflow.
func (c *Client) NextRuns(ctx context.Context, workflowID string, n int) ([]time.Time, error) {
	var result struct {
		Runs []time.Time `json:"runs"`
	}
	path := "/api/v1/schedules/" + url.PathEscape(workflowID) + "/next?count=" + strconv.Itoa(n)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Runs, nil
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
			Engine:     "scheduler",
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
