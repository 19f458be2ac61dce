package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/quill/internal/proxy"
)

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil))

	rr := serve(h, authReq(http.MethodGet, "/health", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil))

	rr := serve(h, authReq(http.MethodGet, "/metrics", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "quill_") {
		t.Errorf("metrics output has no quill series:\n%s", rr.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil))

	for _, path := range []string{"/style/profile", "/samples", "/v1/models", "/generations"} {
		rr := serve(h, authReq(http.MethodGet, path, "", ""))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, rr.Code)
		}
		rr = serve(h, authReq(http.MethodGet, path, "", "wrong"))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with wrong token: status = %d, want 401", path, rr.Code)
		}
	}

	rr := serve(h, authReq(http.MethodGet, "/style/profile", "", ""))
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Error.Type != "authentication_error" {
		t.Errorf("error type = %q", body.Error.Type)
	}
}

func TestChatCompletions_InjectsStyle(t *testing.T) {
	var upstreamReq proxy.ChatRequest
	respJSON := `{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"Hello!"}}]}`

	deps := newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&upstreamReq)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, respJSON)
	})
	h := NewHandler(deps)

	body := `{"model":"test","messages":[{"role":"user","content":"hi"}],"temperature":0.5}`
	rr := serve(h, authReq(http.MethodPost, "/v1/chat/completions", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if rr.Body.String() != respJSON {
		t.Errorf("body = %q, want %q", rr.Body.String(), respJSON)
	}

	var msgs []proxy.Message
	if err := json.Unmarshal(upstreamReq.Messages, &msgs); err != nil {
		t.Fatalf("decoding upstream messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "system" || !strings.HasPrefix(msgs[0].Content, "You are writing in the user's personal style.") {
		t.Errorf("upstream messages = %+v", msgs)
	}
	if string(upstreamReq.Extra["temperature"]) != "0.5" {
		t.Errorf("temperature not passed through: %v", upstreamReq.Extra)
	}
}

func TestChatCompletions_Streaming(t *testing.T) {
	sseData := "data: {\"id\":\"gen-1\",\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\ndata: [DONE]\n\n"

	h := NewHandler(newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseData)
	}))

	body := `{"model":"test","messages":[{"role":"user","content":"hi"}],"stream":true}`
	rr := serve(h, authReq(http.MethodPost, "/v1/chat/completions", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if rr.Body.String() != sseData {
		t.Errorf("body = %q, want %q", rr.Body.String(), sseData)
	}
}

func TestChatCompletions_BadRequests(t *testing.T) {
	h := NewHandler(newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {}))

	for _, body := range []string{"{invalid", `{"model":"test","messages":[]}`, `{"model":"test"}`} {
		rr := serve(h, authReq(http.MethodPost, "/v1/chat/completions", body, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestChatCompletions_NoKey(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil))

	body := `{"model":"test","messages":[{"role":"user","content":"hi"}]}`
	rr := serve(h, authReq(http.MethodPost, "/v1/chat/completions", body, testToken))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rr.Body.String(), "API key is not configured") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		tok string
		ok  bool
	}{
		"Bearer abc":  {"abc", true},
		"bearer abc":  {"abc", true},
		"Basic abc":   {"", false},
		"Bearer":      {"", false},
		"Bearer ":     {"", false},
		"":            {"", false},
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/style/profile", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		tok, ok := bearerToken(r)
		if tok != want.tok || ok != want.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", header, tok, ok, want.tok, want.ok)
		}
	}
}

func TestModels(t *testing.T) {
	h := NewHandler(newTestDeps(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(proxy.ModelList{
			Object: "list",
			Data: []proxy.Model{
				{ID: "anthropic/claude-sonnet-4", Object: "model"},
				{ID: "openai/gpt-4o", Object: "model"},
			},
		})
	}))

	rr := serve(h, authReq(http.MethodGet, "/v1/models", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var list proxy.ModelList
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list.Data) != 2 || list.Data[0].ID != "anthropic/claude-sonnet-4" {
		t.Errorf("models = %+v", list.Data)
	}
}
