// Package client provides an HTTP and websocket client for the rxrag server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/rxrag/internal/models"
)

// DefaultEndpoint is used when neither the caller nor RXRAG_SERVER_URL set one.
const DefaultEndpoint = "http://localhost:8484"

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s - %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the rxrag server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a new client.
// If endpoint is empty, uses RXRAG_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via RXRAG_CLIENT_TIMEOUT env var (default 2m, two LLM calls per question).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("RXRAG_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("RXRAG_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the server base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// do sends a request and decodes a JSON reply into result when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var e models.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Ask sends one question. An empty sessionID uses the server's default session.
func (c *Client) Ask(ctx context.Context, sessionID, prompt string) (*models.AskResponse, error) {
	var resp models.AskResponse
	if err := c.do(ctx, http.MethodPost, "/ask", models.AskRequest{Prompt: prompt, SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetSession clears a session's memory. Returns false if the server
// has no such session.
func (c *Client) ResetSession(ctx context.Context, sessionID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Session returns what the server remembers about a session.
func (c *Client) Session(ctx context.Context, sessionID string) (*models.SessionResponse, error) {
	var info models.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Stats returns server runtime statistics.
func (c *Client) Stats(ctx context.Context) (*models.StatsResponse, error) {
	var stats models.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
