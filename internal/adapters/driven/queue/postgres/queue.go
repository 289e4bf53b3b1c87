package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Ensure Queue implements JobQueue
var _ driven.JobQueue = (*Queue)(nil)

// pollInterval is how often Dequeue polls for new work.
const pollInterval = time.Second

// Queue implements JobQueue using PostgreSQL with SKIP LOCKED.
// This is the fallback queue when Redis is not available.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a new PostgreSQL-backed job queue.
// Assumes the jobs table has been created via the schema.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue adds a job to the queue
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, type, project_id, file_id, ai_config_id, prompt_template_id,
			options, state, progress, attempts, max_attempts, error,
			created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = q.db.ExecContext(ctx, query,
		job.ID,
		job.Type,
		job.ProjectID,
		job.FileID,
		job.AIConfigID,
		job.PromptTemplateID,
		optionsJSON,
		job.State,
		job.Progress,
		job.Attempts,
		job.MaxAttempts,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
		job.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Dequeue retrieves the next available job, polling until one appears or
// the context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, error) {
	return q.dequeue(ctx, 0)
}

// DequeueWithTimeout retrieves the next available job, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	return q.dequeue(ctx, time.Duration(timeout)*time.Second)
}

func (q *Queue) dequeue(ctx context.Context, timeout time.Duration) (*domain.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := q.tryDequeue(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(pollInterval):
		}
	}
}

// tryDequeue claims one due job. SKIP LOCKED keeps concurrent workers from
// claiming the same row.
func (q *Queue) tryDequeue(ctx context.Context) (*domain.Job, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = $1 AND scheduled_for <= NOW()
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, domain.JobStatePending)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.MarkProcessing()
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET state = $1, attempts = $2, started_at = $3, updated_at = $4 WHERE id = $5
	`, job.State, job.Attempts, job.StartedAt, job.UpdatedAt, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

// Ack acknowledges successful completion of a job
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	now := time.Now()
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET state = $1, progress = 1, error = '', completed_at = $2, updated_at = $2 WHERE id = $3
	`, domain.JobStateCompleted, now, jobID)
	if err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return checkAffected(res)
}

// Nack records a failed attempt, re-scheduling with backoff while attempts
// remain
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.CanRetry() {
		job.Retry(reason)
		_, err = q.db.ExecContext(ctx, `
			UPDATE jobs SET state = $1, error = $2, scheduled_for = $3, updated_at = $4 WHERE id = $5
		`, job.State, job.Error, job.ScheduledFor, job.UpdatedAt, jobID)
	} else {
		job.MarkFailed(reason)
		_, err = q.db.ExecContext(ctx, `
			UPDATE jobs SET state = $1, error = $2, updated_at = $3 WHERE id = $4
		`, job.State, job.Error, job.UpdatedAt, jobID)
	}
	if err != nil {
		return fmt.Errorf("nack job: %w", err)
	}
	return nil
}

// SetProgress updates a job's progress fraction
func (q *Queue) SetProgress(ctx context.Context, jobID string, progress float64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET progress = $1, updated_at = $2 WHERE id = $3`,
		progress, time.Now(), jobID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetReport attaches the final per-unit outcome report
func (q *Queue) SetReport(ctx context.Context, jobID string, report *domain.JobReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET report = $1, updated_at = $2 WHERE id = $3`,
		reportJSON, time.Now(), jobID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

// CancelJob marks a pending job as cancelled
func (q *Queue) CancelJob(ctx context.Context, jobID string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET state = $1, error = 'cancelled', updated_at = $2 WHERE id = $3 AND state = $4
	`, domain.JobStateFailed, time.Now(), jobID, domain.JobStatePending)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Missing row or job already running; tell them apart
		if _, err := q.GetJob(ctx, jobID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}
	rows, err := q.db.QueryContext(ctx, `
		SELECT state, scheduled_for > NOW() AS delayed, COUNT(*)
		FROM jobs
		GROUP BY state, delayed
	`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			state   domain.JobState
			delayed bool
			count   int64
		)
		if err := rows.Scan(&state, &delayed, &count); err != nil {
			return nil, err
		}
		switch {
		case state == domain.JobStatePending && delayed:
			stats.Delayed += count
		case state == domain.JobStatePending:
			stats.Waiting += count
		case state == domain.JobStateProcessing:
			stats.Active += count
		case state == domain.JobStateCompleted:
			stats.Completed += count
		case state == domain.JobStateFailed:
			stats.Failed += count
		}
	}
	return stats, rows.Err()
}

// Ping checks if the queue backend is healthy
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close cleans up resources
func (q *Queue) Close() error {
	// Connection pool is shared, don't close it here
	return nil
}

const jobColumns = `id, type, project_id, file_id, ai_config_id, prompt_template_id,
	options, state, progress, attempts, max_attempts, error, report,
	created_at, updated_at, started_at, completed_at, scheduled_for`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job         domain.Job
		optionsJSON []byte
		reportJSON  sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&job.ID, &job.Type, &job.ProjectID, &job.FileID, &job.AIConfigID, &job.PromptTemplateID,
		&optionsJSON, &job.State, &job.Progress, &job.Attempts, &job.MaxAttempts, &job.Error, &reportJSON,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt, &job.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
		return nil, err
	}
	if reportJSON.Valid {
		job.Report = &domain.JobReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), job.Report); err != nil {
			return nil, err
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
