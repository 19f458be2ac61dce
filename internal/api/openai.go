package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kalambet/quill/internal/proxy"
)

// Enricher adds the user's style block to a chat request.
// Implemented by generate.Service.
type Enricher interface {
	Enrich(req proxy.ChatRequest) (proxy.ChatRequest, error)
}

func handleModels(p *proxy.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := p.ListModels(r.Context())
		if err != nil {
			upstreamError(w, "listing models", err)
			return
		}
		writeJSON(w, proxy.ModelList{Object: "list", Data: models})
	}
}

// handleChatCompletions forwards an OpenAI-style request upstream with the
// style block merged into its system message. Enrichment failures are
// logged and the request goes out unchanged.
func handleChatCompletions(p *proxy.Client, enricher Enricher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := readChatRequest(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		if enricher != nil {
			if enriched, err := enricher.Enrich(req); err != nil {
				slog.Warn("style enrichment failed", "error", err)
			} else {
				req = enriched
			}
		}

		body, err := p.Chat(r.Context(), req)
		if err != nil {
			upstreamError(w, "chat completion", err)
			return
		}
		defer body.Close()

		if req.Stream {
			relayEvents(w, body)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := io.Copy(w, body); err != nil {
			slog.Warn("relaying completion", "error", err)
		}
	}
}

func readChatRequest(w http.ResponseWriter, r *http.Request) (proxy.ChatRequest, error) {
	var req proxy.ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}

	var msgs []json.RawMessage
	if len(req.Messages) == 0 || json.Unmarshal(req.Messages, &msgs) != nil || len(msgs) == 0 {
		return req, errors.New("messages is required and must not be empty")
	}
	return req, nil
}

// upstreamError maps proxy failures onto the error envelope. A missing key
// is the caller's configuration problem, anything else is a bad gateway.
func upstreamError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, proxy.ErrNoAPIKey) {
		httpError(w, http.StatusServiceUnavailable, "api_error", "%s: OpenRouter API key is not configured", what)
		return
	}
	httpError(w, http.StatusBadGateway, "api_error", "%s: %v", what, err)
}

// relayEvents copies an SSE stream line by line, flushing after each so
// tokens reach the client as they arrive. A broken upstream stream ends
// with an error event.
func relayEvents(w http.ResponseWriter, src io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	rd := bufio.NewReader(src)
	for {
		line, err := rd.ReadBytes('\n')
		if len(line) > 0 {
			w.Write(line)
			flusher.Flush()
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			slog.Error("upstream stream broke", "error", err)
			event, _ := json.Marshal(errorBody{Error: errorDetail{Message: "upstream read error", Type: "server_error"}})
			fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
			return
		}
	}
}
