package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/quill/internal/extract"
	"github.com/kalambet/quill/internal/storage"
)

var (
	errEmptySample   = errors.New("text is required")
	errInvalidSource = errors.New(`source must be "manual" or "note"`)
	errSampleTooBig  = errors.New("sample exceeds the maximum size")
)

type addSampleRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type addSampleResult struct {
	Sample         storage.Sample `json:"sample"`
	Redacted       bool           `json:"redacted"`
	Pruned         int64          `json:"pruned"`
	TrainScheduled bool           `json:"trainScheduled"`
}

// addSample stores one writing sample. In privacy mode secrets are redacted
// before the text is persisted. The rolling list is pruned to MaxSamples and
// a debounced training job is queued when autoTrain is on.
func addSample(deps Deps, text, source string) (addSampleResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return addSampleResult{}, errEmptySample
	}
	if len(text) > extract.MaxTextSize {
		return addSampleResult{}, errSampleTooBig
	}
	if source == "" {
		source = storage.SourceManual
	}
	if source != storage.SourceManual && source != storage.SourceNote {
		return addSampleResult{}, errInvalidSource
	}

	p, err := deps.Profile.GetProfile()
	if err != nil {
		return addSampleResult{}, err
	}

	var res addSampleResult
	if p.Settings.PrivacyMode && extract.ContainsSecrets(text) {
		text = extract.Redact(text)
		res.Redacted = true
	}

	sm := storage.Sample{
		ID:      uuid.New().String(),
		Text:    text,
		Source:  source,
		AddedAt: time.Now().UTC(),
	}
	if err := deps.Store.AddSample(sm); err != nil {
		return addSampleResult{}, err
	}
	if deps.Metrics != nil {
		deps.Metrics.SampleAdded(source)
	}

	if deps.MaxSamples > 0 {
		n, err := deps.Store.PruneSamples(deps.MaxSamples)
		if err != nil {
			slog.Warn("pruning samples", "error", err)
		}
		res.Pruned = n
	}

	if p.Settings.AutoTrain && deps.Trainer != nil {
		scheduled, err := deps.Trainer.Schedule("sample_added")
		if err != nil {
			slog.Warn("scheduling style training", "error", err)
		}
		res.TrainScheduled = scheduled
	}

	stored, err := deps.Store.GetSample(sm.ID)
	if err != nil {
		return addSampleResult{}, err
	}
	res.Sample = stored
	return res, nil
}

func isSampleInputError(err error) bool {
	return errors.Is(err, errEmptySample) || errors.Is(err, errInvalidSource) || errors.Is(err, errSampleTooBig)
}

func handleAddSample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addSampleRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := addSample(deps, req.Text, req.Source)
		if isSampleInputError(err) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add sample: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, res)
	}
}

func handleListSamples(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		samples, err := deps.Store.ListSamples(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list samples: %v", err)
			return
		}
		if samples == nil {
			samples = []storage.Sample{}
		}
		writeJSON(w, samples)
	}
}

func handleGetSample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sm, err := deps.Store.GetSample(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "sample not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get sample: %v", err)
			return
		}
		writeJSON(w, sm)
	}
}

func handleDeleteSample(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteSample(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "sample not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete sample: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}
