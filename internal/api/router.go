// Package api exposes quill over HTTP (management routes plus an
// OpenAI-compatible passthrough) and over MCP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/quill/internal/generate"
	"github.com/kalambet/quill/internal/metrics"
	"github.com/kalambet/quill/internal/profile"
	"github.com/kalambet/quill/internal/proxy"
	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/training"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the services shared by the HTTP and MCP surfaces.
type Deps struct {
	Store     *storage.Store
	Profile   *profile.Manager
	Trainer   *training.Worker
	Generator *generate.Service
	Proxy     *proxy.Client
	Metrics   *metrics.Metrics // optional

	// MaxSamples caps the rolling sample list; <= 0 keeps everything.
	MaxSamples int
	Token      string
}

// NewHandler returns the complete HTTP surface. /health and /metrics are
// public; everything else requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/v1/models", handleModels(deps.Proxy))
		r.Post("/v1/chat/completions", handleChatCompletions(deps.Proxy, deps.enricher()))

		r.Route("/style", func(r chi.Router) {
			r.Get("/profile", handleGetProfile(deps))
			r.Post("/reset", handleResetProfile(deps))
			r.Get("/export", handleExportProfile(deps))
			r.Post("/import", handleImportProfile(deps))
			r.Patch("/overrides", handlePatchOverrides(deps))
			r.Patch("/settings", handlePatchSettings(deps))
			r.Get("/prompt", handleStylePrompt(deps))
			r.Post("/analyze", handleAnalyze(deps))
			r.Post("/train", handleTrain(deps))
			r.Get("/training", handleTrainingStatus(deps))
		})

		r.Post("/samples", handleAddSample(deps))
		r.Get("/samples", handleListSamples(deps))
		r.Get("/samples/{id}", handleGetSample(deps))
		r.Delete("/samples/{id}", handleDeleteSample(deps))

		r.Post("/generate", handleGenerate(deps))
		r.Get("/generations", handleListGenerations(deps))
		r.Get("/generations/{id}", handleGetGeneration(deps))
		r.Delete("/generations/{id}", handleDeleteGeneration(deps))
	})

	return r
}

func (d Deps) enricher() Enricher {
	if d.Generator == nil {
		return nil
	}
	return d.Generator
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			if err := deps.Store.Ping(r.Context()); err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "storage unavailable: %v", err)
				return
			}
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// httpError writes the OpenAI-style {"error":{"message","type"}} envelope.
func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: fmt.Sprintf(format, args...), Type: errType}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
