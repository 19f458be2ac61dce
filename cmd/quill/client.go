package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/quill/internal/config"
)

// apiClient calls the local quill server on behalf of CLI commands.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	token, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return nil, fmt.Errorf("reading API token: %w", err)
	}
	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: time.Minute},
	}, nil
}

// send issues one authenticated request. A nil body sends no Content-Type.
func (c *apiClient) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is quill running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) sendJSON(ctx context.Context, method, path string, v any) (*http.Response, error) {
	if v == nil {
		return c.send(ctx, method, path, "", nil)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
	}
	return c.send(ctx, method, path, "application/json", bytes.NewReader(data))
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, v any) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodPost, path, v)
}

func (c *apiClient) patch(ctx context.Context, path string, v any) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodPatch, path, v)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodDelete, path, nil)
}

// serverError is a non-2xx answer from the server.
type serverError struct {
	Status  int
	Message string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// decodeJSON closes resp after decoding a success body into v (nil
// discards it). Error responses become *serverError, preferring the message
// from the {"error":{...}} envelope over the raw body.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return fmt.Errorf("server returned %d (reading body: %w)", resp.StatusCode, err)
		}
		var env struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return &serverError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
