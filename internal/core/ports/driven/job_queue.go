package driven

import (
	"context"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// JobQueue handles background job queuing and processing.
type JobQueue interface {
	// Enqueue adds a job to the queue for processing.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue retrieves the next available job for processing, blocking
	// until one is available or the context is cancelled.
	Dequeue(ctx context.Context) (*domain.Job, error)

	// DequeueWithTimeout retrieves the next available job, waiting up to
	// timeout seconds. Returns nil, nil when the timeout elapses idle.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error)

	// Ack acknowledges successful completion of a job.
	Ack(ctx context.Context, jobID string) error

	// Nack records a failed attempt. The job is re-enqueued with
	// exponential backoff until MaxAttempts is exhausted, then marked
	// failed.
	Nack(ctx context.Context, jobID string, reason string) error

	// SetProgress updates a job's progress fraction while it runs.
	SetProgress(ctx context.Context, jobID string, progress float64) error

	// SetReport attaches the final per-unit outcome report.
	SetReport(ctx context.Context, jobID string, report *domain.JobReport) error

	// GetJob retrieves a job by ID (for status checking).
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// CancelJob marks a pending job as cancelled. Jobs already processing
	// finish their current unit and stop at the next cancellation point.
	CancelJob(ctx context.Context, jobID string) error

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats holds queue-level counters.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
