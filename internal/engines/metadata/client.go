// Package metadata wraps the metadata graph service's API.
package metadata

import (
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

// Column describes a single table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

// Table is a catalog entry for a dataset.
type Table struct {
	Name      string    `json:"name"`
	Database  string    `json:"database"`
	Columns   []Column  `json:"columns"`
	Owner     string    `json:"owner,omitempty"`
	RowCount  int64     `json:"row_count,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineageEdge is a directed dependency between two tables.
type LineageEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LineageGraph holds the upstream and downstream neighborhood of a table.
type LineageGraph struct {
	Root  string        `json:"root"`
	Nodes []string      `json:"nodes"`
	Edges []LineageEdge `json:"edges"`
}

// Client calls the metadata graph service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a metadata service client.
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

// GetTable retrieves a table's catalog entry by qualified name.
func (c *Client) GetTable(ctx context.Context, name string) (*Table, error) {
	var table Table
	path := "/api/v1/tables/" + url.PathEscape(name)
	if err := c.doJSON(ctx, http.MethodGet, path, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// Lineage retrieves the dependency graph around a table up to depth hops.
func (c *Client) Lineage(ctx context.Context, table string, depth int) (*LineageGraph, error) {
	var graph LineageGraph
	path := "/api/v1/tables/" + url.PathEscape(table) + "/lineage?depth=" + strconv.Itoa(depth)
	if err := c.doJSON(ctx, http.MethodGet, path, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

// SearchTables searches the catalog by name or comment.
func (c *Client) SearchTables(ctx context.Context, query string, limit int) ([]*Table, error) {
	var result struct {
		Tables []*Table `json:"tables"`
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tables/search?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Tables, nil
}

// doJSON executes a GET request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
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
			Engine:     "metadata",
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
