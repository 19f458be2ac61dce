// Package training folds queued writing samples into the style profile.
package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/style"
)

// JobType is the queue type of style training jobs.
const JobType = "style_train"

// JobStore abstracts the job queue and sample operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	HasPendingJob(jobType string) (bool, error)
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	JobStats(jobType string) (storage.JobStats, error)

	ListUntrainedSamples(includeNotes bool) ([]storage.Sample, error)
	DeleteSamples(ids []string) (int64, error)
}

// Trainer updates the persisted profile. Implemented by profile.Manager.
// TrainSamples must save the profile and mark ids trained atomically.
type Trainer interface {
	GetProfile() (style.Profile, error)
	TrainSamples(texts, ids []string) (style.Profile, style.Analysis, error)
}

// Recorder receives training outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	TrainingFinished(result string, samples int, elapsed time.Duration, confidence float64)
}

// Result summarizes one training pass.
type Result struct {
	Samples    int           `json:"samples"`
	Tokens     int           `json:"tokens"`
	Deleted    int64         `json:"deleted"`
	Profile    style.Profile `json:"profile"`
	Skipped    bool          `json:"skipped"`
	DurationMS int64         `json:"durationMs"`
}

type trainPayload struct {
	Reason string `json:"reason"`
}

// Worker processes style_train jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	profiles Trainer
	recorder Recorder
	poll     time.Duration
	debounce time.Duration
	logger   *slog.Logger

	// trainMu serializes training passes so that a sample is never folded
	// into the profile twice.
	trainMu sync.Mutex
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, profiles Trainer, pollInterval, debounce time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if debounce < 0 {
		debounce = 0
	}
	return &Worker{
		store:    store,
		profiles: profiles,
		poll:     pollInterval,
		debounce: debounce,
		logger:   slog.Default(),
	}
}

// SetRecorder attaches a metrics recorder.
func (w *Worker) SetRecorder(r Recorder) {
	w.recorder = r
}

// Schedule enqueues a training job that becomes claimable after the
// debounce delay. It is a no-op while another job is still pending, so a
// burst of new samples results in a single training pass.
func (w *Worker) Schedule(reason string) (bool, error) {
	pending, err := w.store.HasPendingJob(JobType)
	if err != nil {
		return false, fmt.Errorf("checking pending jobs: %w", err)
	}
	if pending {
		return false, nil
	}

	payload, _ := json.Marshal(trainPayload{Reason: reason})
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
		RunAfter:    time.Now().Add(w.debounce),
	}
	if err := w.store.EnqueueJob(job); err != nil {
		return false, fmt.Errorf("enqueueing training job: %w", err)
	}
	w.logger.Debug("training scheduled", "job_id", job.ID, "reason", reason, "debounce", w.debounce)
	return true, nil
}

// Status reports the state of the training queue.
func (w *Worker) Status() (storage.JobStats, error) {
	st, err := w.store.JobStats(JobType)
	if err != nil {
		return st, fmt.Errorf("reading training queue: %w", err)
	}
	return st, nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single style_train job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if _, err := w.TrainPending(ctx); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// TrainPending folds every untrained sample into the profile, honoring the
// profile's includeNotesOnTrain and privacyMode settings.
func (w *Worker) TrainPending(ctx context.Context) (Result, error) {
	w.trainMu.Lock()
	defer w.trainMu.Unlock()

	start := time.Now()
	res, err := w.trainPending(ctx)
	res.DurationMS = time.Since(start).Milliseconds()

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Skipped:
		outcome = "skipped"
	}
	if w.recorder != nil {
		w.recorder.TrainingFinished(outcome, res.Samples, time.Since(start), res.Profile.Training.Confidence)
	}
	return res, err
}

func (w *Worker) trainPending(ctx context.Context) (Result, error) {
	current, err := w.profiles.GetProfile()
	if err != nil {
		return Result{}, fmt.Errorf("loading profile: %w", err)
	}

	samples, err := w.store.ListUntrainedSamples(current.Settings.IncludeNotesOnTrain)
	if err != nil {
		return Result{}, fmt.Errorf("listing untrained samples: %w", err)
	}
	if len(samples) == 0 {
		return Result{Skipped: true, Profile: current}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	texts := make([]string, len(samples))
	ids := make([]string, len(samples))
	for i, sm := range samples {
		texts[i] = sm.Text
		ids[i] = sm.ID
	}

	updated, analysis, err := w.profiles.TrainSamples(texts, ids)
	if err != nil {
		return Result{}, fmt.Errorf("training profile: %w", err)
	}

	res := Result{
		Samples: analysis.Training.SamplesAnalyzed,
		Tokens:  analysis.Training.TotalTokens,
		Profile: updated,
	}
	if updated.Settings.PrivacyMode {
		n, err := w.store.DeleteSamples(ids)
		if err != nil {
			return res, fmt.Errorf("deleting trained samples: %w", err)
		}
		res.Deleted = n
	}

	w.logger.Info("style profile trained",
		"samples", res.Samples,
		"tokens", res.Tokens,
		"confidence", updated.Training.Confidence,
		"deleted", res.Deleted,
	)
	return res, nil
}
