// Package cdc wraps the change-data-capture sync service's API.
package cdc

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

// SyncRequest describes a new source-to-target sync.
// SourceCredentials carries the decrypted connector credentials when the
// caller holds the vault's private key.
type SyncRequest struct {
	SourceID          string          `json:"source_id"`
	TargetID          string          `json:"target_id"`
	Mode              string          `json:"mode"`
	Tables            []string        `json:"tables,omitempty"`
	SourceCredentials json.RawMessage `json:"source_credentials,omitempty"`
}

// Sync is the service's view of a running or finished sync.
type Sync struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	RowsSynced   int64     `json:"rows_synced"`
	LagSeconds   float64   `json:"lag_seconds"`
	Error        string    `json:"error,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Client calls the CDC sync service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a CDC service client.
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

// CreateSync starts a new sync between a source and target.
func (c *Client) CreateSync(ctx context.Context, req *SyncRequest) (*Sync, error) {
	var sync Sync
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/syncs", req, &sync); err != nil {
		return nil, err
	}
	return &sync, nil
}

// SyncStatus retrieves the current state of a sync.
func (c *Client) SyncStatus(ctx context.Context, syncID string) (*Sync, error) {
	var sync Sync
	path := "/api/v1/syncs/" + url.PathEscape(syncID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sync); err != nil {
		return nil, err
	}
	return &sync, nil
}

// ListSyncs retrieves all syncs known to the service.
func (c *Client) ListSyncs(ctx context.Context) ([]*Sync, error) {
	var result struct {
		Syncs []*Sync `json:"syncs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/syncs", nil, &result); err != nil {
		return nil, err
	}
	return result.Syncs, nil
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
			Engine:     "cdc",
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
