// Package agentfleet is a small Go client for the fleet status API.
package agentfleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the fleet status API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

// Transfer is one executed token transfer as reported by the journal.
type Transfer struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Round     int    `json:"round"`
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	AmountRaw uint64 `json:"amount_raw"`
	Decimals  uint8  `json:"decimals"`
	Signature string `json:"signature"`
	CreatedAt int64  `json:"created_at"`
}

// MintInfo identifies the token mint and its decimal precision.
type MintInfo struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// RunState mirrors the persisted run-state document.
type RunState struct {
	Version int               `json:"version"`
	Mint    *MintInfo         `json:"mint,omitempty"`
	ATAs    map[string]string `json:"atas"`
}

// APIError represents a non-2xx response from the status API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("agentfleet api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the status API. When httpClient is nil,
// a default client with a sensible timeout is used. An empty token is valid
// against servers that run without authentication.
func NewClient(rawURL, token string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient, token: token}, nil
}

// Health reports whether the daemon answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// ListTransfers fetches up to limit transfers, newest first. A non-positive
// limit uses the server default.
func (c *Client) ListTransfers(ctx context.Context, limit int) ([]Transfer, error) {
	endpoint := "/api/v1/transfers"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var transfers []Transfer
	if err := c.get(ctx, endpoint, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// GetState fetches the persisted run state.
func (c *Client) GetState(ctx context.Context) (RunState, error) {
	var doc RunState
	if err := c.get(ctx, "/api/v1/state", &doc); err != nil {
		return RunState{}, err
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	rel.Path = path.Join(c.baseURL.Path, rel.Path)
	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
