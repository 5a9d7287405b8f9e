// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/campusgpt-tui/internal/model"
)

// Configuration constants for the CampusGPT API.
const (
	// DefaultBaseURL is the backend address used in development.
	DefaultBaseURL = "http://localhost:8000"

	// Default endpoint paths, relative to the base URL.
	DefaultQueryPath   = "/api/query"
	DefaultHistoryPath = "/api/student/history"
	DefaultSessionPath = "/api/student/chat/session"

	// DefaultTimeout applies to non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed non-streaming response body.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "campusgpt-tui/0.1.0"
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: newTransport(),
		Timeout:   DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by context.
	sharedStreamingClient = &http.Client{
		Transport: newTransport(),
	}
)

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// ErrNoCredentials is returned when the credential source has no token.
var ErrNoCredentials = errors.New("no credentials available")

// =============================================================================
// TYPES
// =============================================================================

// Credentials yields the bearer token attached to every request.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// invalidator is implemented by credential sources that can forget a
// rejected token.
type invalidator interface {
	Invalidate() error
}

// Request is one question sent to the query endpoint.
type Request struct {
	Question  string `json:"question"`
	Stream    bool   `json:"stream"`
	SessionID string `json:"session_id,omitempty"`
}

// AnswerPayload is the complete reply of a non-streaming query.
type AnswerPayload struct {
	Text      string           `json:"answer"`
	Citations []model.Citation `json:"sources"`
}

// Reply holds either a streaming body or a complete answer.
type Reply struct {
	// Body is the raw line stream; nil for non-streaming replies. The
	// caller must Close the Reply.
	Body io.ReadCloser

	// Answer is set for non-streaming replies.
	Answer *AnswerPayload

	Status int
}

// Streaming reports whether the reply carries a body to decode.
func (r *Reply) Streaming() bool {
	return r.Body != nil
}

// Close releases the streaming body, if any.
func (r *Reply) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a CampusGPT backend client.
type Client struct {
	baseURL     string
	queryPath   string
	historyPath string
	sessionPath string

	creds        Credentials
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
	onUnauth     func()
}

// NewClient creates a client for baseURL using creds for authentication.
func NewClient(baseURL string, creds Credentials) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		queryPath:    DefaultQueryPath,
		historyPath:  DefaultHistoryPath,
		sessionPath:  DefaultSessionPath,
		creds:        creds,
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		logger:       slog.Default(),
	}
}

// WithPaths overrides the endpoint paths. Empty values keep the current path.
func (c *Client) WithPaths(query, history, session string) *Client {
	if query != "" {
		c.queryPath = query
	}
	if history != "" {
		c.historyPath = history
	}
	if session != "" {
		c.sessionPath = session
	}
	return c
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: timeout}
	}
	return c
}

// WithHTTPClient replaces both underlying HTTP clients. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// OnUnauthorized registers a hook run after a 401 invalidated the token.
func (c *Client) OnUnauthorized(fn func()) *Client {
	c.onUnauth = fn
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send issues a query. For streaming requests the returned Reply carries the
// open response body; the caller must Close it.
func (c *Client) Send(ctx context.Context, r Request) (*Reply, error) {
	if !r.Stream {
		var answer AnswerPayload
		if err := c.doJSON(ctx, http.MethodPost, c.queryPath, r, &answer); err != nil {
			return nil, err
		}
		return &Reply{Answer: &answer, Status: http.StatusOK}, nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.queryPath, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(c.streamClient, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}

	return &Reply{Body: resp.Body, Status: resp.StatusCode}, nil
}

// History fetches the caller's saved question/answer pairs, newest first.
func (c *Client) History(ctx context.Context) ([]model.HistoryEntry, error) {
	var out struct {
		Queries []model.HistoryEntry `json:"queries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.historyPath, nil, &out); err != nil {
		return nil, err
	}
	if out.Queries == nil {
		out.Queries = []model.HistoryEntry{}
	}
	return out.Queries, nil
}

// CreateSession asks the backend for a new chat session ID.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.sessionPath, struct{}{}, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", errors.New("backend returned an empty session_id")
	}
	return out.SessionID, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", ErrNoCredentials
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCredentials, err)
	}
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

// do sends req and logs method, path, status and duration. Headers and
// bodies are never logged.
func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logger.Debug("api response", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-2xx response to *Error and runs the
// unauthorized hook on 401.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	apiErr := newError(status, body)

	if status == http.StatusUnauthorized {
		if inv, ok := c.creds.(invalidator); ok {
			if err := inv.Invalidate(); err != nil {
				c.logger.Warn("failed to clear rejected credentials", "error", err)
			}
		}
		if c.onUnauth != nil {
			c.onUnauth()
		}
	}
	return apiErr
}
