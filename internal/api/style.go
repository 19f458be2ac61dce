package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/quill/internal/profile"
	"github.com/kalambet/quill/internal/style"
)

// maxAnalyzeSamples bounds the stateless analyze endpoint.
const maxAnalyzeSamples = 500

type analyzeRequest struct {
	Samples []string `json:"samples"`
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handleResetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.Reset()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to reset profile: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handleExportProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		data, err := deps.Profile.Export(format)
		if errors.Is(err, profile.ErrUnsupportedFormat) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to export profile: %v", err)
			return
		}

		contentType := "application/json"
		if format == profile.FormatYAML || format == "yml" {
			contentType = "application/yaml"
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}
}

func handleImportProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}

		p, err := deps.Profile.Import(data)
		if errors.Is(err, style.ErrInvalidProfile) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to import profile: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handlePatchOverrides(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch profile.OverridesPatch
		if !decodeBody(w, r, &patch) {
			return
		}

		p, err := deps.Profile.UpdateOverrides(patch)
		if errors.Is(err, profile.ErrCorruptProfile) {
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		}
		if errors.Is(err, style.ErrInvalidProfile) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update overrides: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handlePatchSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch profile.SettingsPatch
		if !decodeBody(w, r, &patch) {
			return
		}

		p, err := deps.Profile.UpdateSettings(patch)
		if errors.Is(err, profile.ErrCorruptProfile) {
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update settings: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handleStylePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prompt, err := deps.Profile.StylePrompt()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build prompt: %v", err)
			return
		}
		writeJSON(w, map[string]string{"prompt": prompt})
	}
}

// handleAnalyze runs the analyzer without touching the stored profile.
func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Samples) > maxAnalyzeSamples {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at most %d samples may be analyzed at once", maxAnalyzeSamples)
			return
		}
		writeJSON(w, style.Analyze(req.Samples, time.Now().UTC()))
	}
}

func handleTrainingStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Trainer.Status()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, st)
	}
}

func handleTrain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Trainer.TrainPending(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "training failed: %v", err)
			return
		}
		writeJSON(w, res)
	}
}
