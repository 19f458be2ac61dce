package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Sample sources.
const (
	SourceManual = "manual"
	SourceNote   = "note"
)

// Sample is one writing sample in the rolling training list.
type Sample struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Source    string     `json:"source"` // "manual" or "note"
	AddedAt   time.Time  `json:"addedAt"`
	WordCount int        `json:"wordCount"`
	TrainedAt *time.Time `json:"trainedAt,omitempty"`
}

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one entry of the background job queue.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// Generation is one logged text-generation request.
type Generation struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Prompt      string    `json:"prompt"`
	StylePrompt string    `json:"stylePrompt"`
	Model       string    `json:"model"`
	Output      string    `json:"output"`
	Fallback    bool      `json:"fallback"`
	LatencyMS   int64     `json:"latencyMs"`
	Error       string    `json:"error,omitempty"`
}

// JobStats summarizes the queue for one job type.
type JobStats struct {
	Pending   int        `json:"pending"`
	Running   int        `json:"running"`
	Failed    int        `json:"failed"`
	LastError string     `json:"lastError,omitempty"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}
