package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable indicates the menu service could not be reached or answered badly.
var ErrUnavailable = errors.New("menu service unavailable")

// Client fetches the available-menu catalog from the backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Now     func() time.Time
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Available fetches GET {base}/menu/available and returns a fresh snapshot.
func (c *Client) Available(ctx context.Context) (*Snapshot, error) {
	if c == nil || c.BaseURL == "" {
		return nil, errors.New("menu client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/menu/available", nil)
	if err != nil {
		return nil, fmt.Errorf("build menu request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch menu: %w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("menu service responded %s: %w", resp.Status, ErrUnavailable)
	}
	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode menu payload: %w", err)
	}
	return NewSnapshot(items, c.now()), nil
}
