// Package snipeit talks to a Snipe-IT asset server and mirrors agent
// inventory into its hardware records.
package snipeit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// ErrNotConfigured is returned by NewClient when the base URL or token is empty.
var ErrNotConfigured = errors.New("snipeit: base url and api token are required")

// APIError is a non-success answer from Snipe-IT. Snipe-IT reports some
// failures with HTTP 200 and "status":"error", which also land here.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("snipeit: %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("snipeit: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Hardware is the subset of a Snipe-IT hardware row this service reads.
type Hardware struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Serial   string `json:"serial"`
	AssetTag string `json:"asset_tag"`
}

// Lookup is an id/name pair from one of the Snipe-IT reference lists.
type Lookup struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type listResponse[T any] struct {
	Total int `json:"total"`
	Rows  []T `json:"rows"`
}

// writeResponse covers both the bare-object and the status envelope forms
// Snipe-IT uses for create and update answers.
type writeResponse struct {
	Status   string          `json:"status"`
	Messages json.RawMessage `json:"messages"`
	Payload  *Hardware       `json:"payload"`
	ID       int             `json:"id"`
}

// Client is a minimal Snipe-IT REST client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client. A zero timeout uses 30 seconds.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || token == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("snipeit: invalid base url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// SearchHardware runs a free-text hardware search and returns the first
// row, or nil when nothing matched.
func (c *Client) SearchHardware(ctx context.Context, term string) (*Hardware, error) {
	var resp listResponse[Hardware]
	path := "/api/v1/hardware?search=" + url.QueryEscape(term)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Total <= 0 || len(resp.Rows) == 0 {
		return nil, nil
	}
	return &resp.Rows[0], nil
}

// SearchByIdentity looks up by serial first, then by hostname. Either
// term is skipped when empty.
func (c *Client) SearchByIdentity(ctx context.Context, serial, hostname string) (*Hardware, error) {
	if serial != "" {
		hw, err := c.SearchHardware(ctx, serial)
		if err != nil || hw != nil {
			return hw, err
		}
	}
	if hostname != "" {
		return c.SearchHardware(ctx, hostname)
	}
	return nil, nil
}

// CreateHardware creates a hardware record and returns its id when the
// server reports one.
func (c *Client) CreateHardware(ctx context.Context, asset Asset) (int, error) {
	var resp writeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/hardware", asset, &resp); err != nil {
		return 0, err
	}
	return resp.id(), nil
}

// UpdateHardware patches the hardware record with id.
func (c *Client) UpdateHardware(ctx context.Context, id int, asset Asset) error {
	var resp writeResponse
	return c.do(ctx, http.MethodPatch, "/api/v1/hardware/"+strconv.Itoa(id), asset, &resp)
}

// ListModels returns the asset models known to Snipe-IT.
func (c *Client) ListModels(ctx context.Context) ([]Lookup, error) {
	return c.list(ctx, "/api/v1/models")
}

// ListCategories returns the asset categories known to Snipe-IT.
func (c *Client) ListCategories(ctx context.Context) ([]Lookup, error) {
	return c.list(ctx, "/api/v1/categories")
}

// ListStatusLabels returns the status labels known to Snipe-IT.
func (c *Client) ListStatusLabels(ctx context.Context) ([]Lookup, error) {
	return c.list(ctx, "/api/v1/statuslabels")
}

func (c *Client) list(ctx context.Context, path string) ([]Lookup, error) {
	var resp listResponse[Lookup]
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("snipeit: encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("snipeit: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("snipeit: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("snipeit: read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: snippet(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("snipeit: decode %s response: %w", path, err)
	}
	if wr, ok := out.(*writeResponse); ok && wr.Status == "error" {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: string(wr.Messages)}
	}
	return nil
}

func (r writeResponse) id() int {
	if r.Payload != nil && r.Payload.ID != 0 {
		return r.Payload.ID
	}
	return r.ID
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
