// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Configuration constants for the Gemini API.
const (
	// DefaultBaseURL is the base URL for the Gemini REST API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-pro"

	// DefaultTimeout is the default timeout for single-shot requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of attempts for transient errors.
	DefaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	// Shared transports keep connections pooled across clients.
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
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// Error variables for common API failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("gemini API key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates quota or rate limits were hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrBlocked indicates the prompt or answer was blocked by safety filters.
	ErrBlocked = errors.New("blocked by safety settings")

	// ErrEmptyResponse indicates the API returned no candidates.
	ErrEmptyResponse = errors.New("empty response")
)

// APIError is an error payload returned by the API.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // API status string, e.g. INVALID_ARGUMENT
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gemini error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini error (HTTP %d): %s", e.Status, e.Message)
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Gemini REST API. Configure it with the With* methods
// before first use; it is safe for concurrent requests afterwards.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	maxRetries   int
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a client for the given API key. An empty key is
// accepted, but every request then fails with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      DefaultBaseURL,
		model:        DefaultModel,
		maxRetries:   DefaultMaxRetries,
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		logger:       slog.Default(),
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(u string) *Client {
	if u != "" {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
	return c
}

// WithModel sets the model name, e.g. "gemini-1.5-pro".
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = strings.TrimPrefix(model, "models/")
	}
	return c
}

// WithTimeout sets the single-shot request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
	return c
}

// WithMaxRetries sets the number of attempts for transient errors.
func (c *Client) WithMaxRetries(n int) *Client {
	if n > 0 {
		c.maxRetries = n
	}
	return c
}

// WithHTTPClient replaces both the single-shot and streaming HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
		c.streamClient = hc
	}
	return c
}

// WithLogger sets the logger used for request logging.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// IsConfigured returns true if an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// KeyFingerprint returns a short hash of the API key that is safe to log.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// ValidateAPIKey performs a cheap format check on a Gemini API key.
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return ErrNotConfigured
	case strings.ContainsAny(key, " \t\r\n"):
		return errors.New("API key contains whitespace")
	case len(key) < 20:
		return fmt.Errorf("API key too short (%d characters)", len(key))
	}
	return nil
}

// endpoint builds the URL for a model method such as "generateContent".
func (c *Client) endpoint(method string, query url.Values) string {
	u := fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(c.model), method)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, endpoint string, body *GenerateRequest) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("User-Agent", "drecho/1.0")
	return req, nil
}

// logRequest logs method and path only; headers carry the key.
func (c *Client) logRequest(req *http.Request) {
	c.logger.Debug("api request", "method", req.Method, "path", req.URL.Path)
}

func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	c.logger.Debug("api response", "status", resp.StatusCode, "duration", duration)
}

// =============================================================================
// GENERATE CONTENT
// =============================================================================

// GenerateContent performs a single-shot request. Rate limiting and 5xx
// responses are retried with exponential backoff.
func (c *Client) GenerateContent(ctx context.Context, body *GenerateRequest) (*GenerateResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.endpoint("generateContent", nil)
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		resp, err := c.doRequest(ctx, endpoint, body)
		if err != nil {
			if c.isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, body *GenerateRequest) (*GenerateResponse, error) {
	req, err := c.newRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, data)
	}

	var out GenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if reason := out.BlockReason(); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, reason)
	}
	if len(out.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// handleErrorResponse converts an HTTP error response into a Go error.
func handleErrorResponse(status int, body []byte) error {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Code = parsed.Error.Status
		apiErr.Message = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuthFailed, apiErr)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		return fmt.Errorf("%w: %w", ErrAuthFailed, apiErr)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrModelNotFound, apiErr)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	default:
		return apiErr
	}
}

// isRetryable reports whether err is worth another attempt.
func (c *Client) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}

// calculateBackoff returns the delay before the given attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
