package jobs

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a scheduled ingestion.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying covers the backoff wait before a failed ingestion is
	// published again.
	JobStatusRetrying JobStatus = "retrying"
)

// IngestFolderJob asks the worker to run one folder ingestion.
type IngestFolderJob struct {
	JobID  string `json:"job_id"`
	Folder string `json:"folder"`
	// ForceRefresh re-ingests files already in processed_files.
	ForceRefresh bool      `json:"force_refresh"`
	Status       JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the last handler error; it is cleared on success.
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	// MaxRetries counts re-runs after the first attempt. Zero means the
	// queue default.
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues folder ingestions. The cron scheduler and the worker's
// startup run both publish through it.
type Publisher interface {
	PublishIngestFolder(ctx context.Context, job *IngestFolderJob) error
	Close() error
}

// Consumer runs ingestions as they arrive.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	// Stop waits for the ingestion in progress, if any.
	Stop(ctx context.Context) error
}

// Handler runs one folder ingestion. A non-nil error schedules a retry while
// the job has retries left.
type Handler func(ctx context.Context, job *IngestFolderJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestFolderJob) error
	GetJob(ctx context.Context, jobID string) (*IngestFolderJob, error)
	// ListJobs returns matching jobs, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestFolderJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Folder string
	Status JobStatus
	Limit  int
	Offset int
}
