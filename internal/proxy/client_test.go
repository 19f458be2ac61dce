package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func userRequest(t *testing.T, stream bool) ChatRequest {
	t.Helper()
	req, err := NewRequest("test/model", Message{Role: "user", Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	req.Stream = stream
	return req
}

func TestChat_Streaming(t *testing.T) {
	sseData := "data: {\"id\":\"gen-1\",\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\ndata: [DONE]\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseData)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	rc, err := c.Chat(context.Background(), userRequest(t, true))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != sseData {
		t.Errorf("body = %q, want %q", string(body), sseData)
	}
}

func TestChat_Headers(t *testing.T) {
	var gotAuth, gotTitle, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"id":"gen-1","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL+"/")
	rc, err := c.Chat(context.Background(), userRequest(t, false))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	rc.Close()

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotTitle != "quill" {
		t.Errorf("X-Title = %q, want quill", gotTitle)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
}

func TestChat_NoKey(t *testing.T) {
	c := NewClient("", "http://127.0.0.1:1")
	if c.HasKey() {
		t.Fatal("HasKey() = true for empty key")
	}
	if _, err := c.Chat(context.Background(), userRequest(t, false)); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

func TestChat_RateLimit_Retry(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":"gen-1","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	rc, err := c.Chat(context.Background(), userRequest(t, false))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	rc.Close()

	if got := attempt.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestChat_RateLimit_Exhausted(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	_, err := c.Chat(context.Background(), userRequest(t, false))
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "rate limited")
	}
	if got := attempt.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestChat_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	_, err := c.Chat(context.Background(), userRequest(t, false))

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusBadGateway || se.Body != "upstream down" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestChat_ContextCancellation(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-handlerDone
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := userRequest(t, true)
	done := make(chan error, 1)
	go func() {
		c := NewClient("test-key", srv.URL)
		rc, err := c.Chat(ctx, req)
		if err != nil {
			done <- err
			return
		}
		_, err = io.ReadAll(rc)
		rc.Close()
		done <- err
	}()

	<-handlerStarted
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after context cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Chat did not return promptly after context cancellation")
	}
	close(handlerDone)
}

func TestChat_RetriesUnavailable(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id":"gen-1","choices":[]}`)
	}))
	defer srv.Close()

	rc, err := NewClient("test-key", srv.URL).Chat(context.Background(), userRequest(t, false))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	rc.Close()
	if got := attempt.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		attempt int
		hint    time.Duration
		want    time.Duration
	}{
		{1, 0, 500 * time.Millisecond},
		{2, 0, time.Second},
		{3, 0, 2 * time.Second},
		{2, 3 * time.Second, 3 * time.Second},
		{1, time.Minute, maxBackoff},
		{6, 0, maxBackoff},
	}
	for _, tc := range cases {
		if got := retryDelay(tc.attempt, tc.hint); got != tc.want {
			t.Errorf("retryDelay(%d, %v) = %v, want %v", tc.attempt, tc.hint, got, tc.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"":                              0,
		"2":                             2 * time.Second,
		" 10 ":                          10 * time.Second,
		"-1":                            0,
		"Wed, 21 Oct 2015 07:28:00 GMT": 0,
	} {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComplete(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"id":"gen-1","model":"test/model","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there."},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	resp, err := c.Complete(context.Background(), userRequest(t, true))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "Hi there." {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.Model != "test/model" {
		t.Errorf("Model = %q", resp.Model)
	}
	if got.Stream {
		t.Error("Complete sent a streaming request")
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"gen-1","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	if _, err := c.Complete(context.Background(), userRequest(t, false)); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatRequest_PreservesExtra(t *testing.T) {
	in := `{"model":"m","messages":[],"temperature":0.2,"max_tokens":64}`
	var req ChatRequest
	if err := json.Unmarshal([]byte(in), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	json.Unmarshal(out, &m)
	if m["temperature"] != 0.2 || m["max_tokens"] != float64(64) {
		t.Errorf("extra fields lost: %s", out)
	}
	if _, ok := m["stream"]; ok {
		t.Errorf("stream should be omitted when false: %s", out)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ModelList{
			Object: "list",
			Data: []Model{
				{ID: "anthropic/claude-sonnet-4", Object: "model"},
				{ID: "openai/gpt-4o", Object: "model"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[1].ID != "openai/gpt-4o" {
		t.Errorf("models = %+v", models)
	}
}

func TestListModels_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ModelList{Object: "list"})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if models == nil || len(models) != 0 {
		t.Errorf("models = %#v, want empty slice", models)
	}
}
