// Package proxy talks to a hosted OpenAI-compatible completion endpoint
// (OpenRouter by default).
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultTimeout = 60 * time.Second
	streamTimeout  = 5 * time.Minute
	maxAttempts    = 3
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxErrorBody   = 4096
)

// ErrNoAPIKey is returned when the client has no credentials configured.
var ErrNoAPIKey = errors.New("no API key configured")

// StatusError is an upstream response other than 200.
type StatusError struct {
	Status int
	Body   string
	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Status == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limited (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// Client communicates with the completion API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
}

// NewClient creates a client. An empty baseURL selects OpenRouter.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	h := http.Header{}
	// OpenRouter attribution headers.
	h.Set("HTTP-Referer", "https://github.com/kalambet/quill")
	h.Set("X-Title", "quill")
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		headers:    h,
	}
}

// SetTimeout overrides the per-request timeout for non-streaming calls.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Chat posts a chat completion and returns the raw response body, SSE
// events when req.Stream is set. The caller closes it. Rate limited and
// unavailable responses are retried with exponential backoff.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if !c.HasKey() {
		return nil, ErrNoAPIKey
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	timeout := c.timeout
	if req.Stream {
		timeout = streamTimeout
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, http.MethodPost, "/chat/completions", body, timeout)
		if err == nil {
			return resp.Body, nil
		}

		var se *StatusError
		if !errors.As(err, &se) || !se.Temporary() {
			return nil, err
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(attempt, se.RetryAfter)):
		}
	}
}

// retryDelay doubles baseBackoff per attempt. A server hint wins when it is
// longer. Both are capped at maxBackoff.
func retryDelay(attempt int, hint time.Duration) time.Duration {
	d := baseBackoff << (attempt - 1)
	if hint > d {
		d = hint
	}
	return min(d, maxBackoff)
}

// Complete sends a non-streaming request and decodes the response.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	req.Stream = false
	rc, err := c.Chat(ctx, req)
	if err != nil {
		return ChatResponse{}, err
	}
	defer rc.Close()

	var resp ChatResponse
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return ChatResponse{}, fmt.Errorf("decoding completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, errors.New("completion has no choices")
	}
	return resp, nil
}

// ListModels returns the models offered by the upstream endpoint.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.send(ctx, http.MethodGet, "/models", nil, c.timeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}
	if list.Data == nil {
		list.Data = []Model{}
	}
	return list.Data, nil
}

// send performs one request. Non-200 responses become *StatusError. On
// success the body is valid until closed, and closing it releases the
// timeout.
func (c *Client) send(ctx context.Context, method, path string, body []byte, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{
			Status:     resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// parseRetryAfter understands the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
