package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

func setupTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	return q
}

func testJob() *domain.Job {
	return domain.NewTranslateFileJob("proj-1", "file-1", "cfg-1", domain.JobOptions{})
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a job")
	}
	if got.ID != job.ID {
		t.Errorf("expected job %s, got %s", job.ID, got.ID)
	}
	if got.State != domain.JobStateProcessing {
		t.Errorf("dequeued job must be processing, got %s", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}
}

func TestQueue_Ack(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report := &domain.JobReport{Total: 3, TranslatedAI: 2, TranslatedTM: 1}
	if err := q.SetReport(ctx, job.ID, report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != domain.JobStateCompleted {
		t.Errorf("expected completed, got %s", got.State)
	}
	if got.Report == nil || got.Report.TranslatedAI != 2 {
		t.Errorf("report not preserved: %+v", got.Report)
	}
	if got.Progress != 1 {
		t.Errorf("completion must pin progress to 1, got %f", got.Progress)
	}
}

func TestQueue_NackRequeuesWithBackoff(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Nack(ctx, job.ID, "provider timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != domain.JobStatePending {
		t.Errorf("retryable job must go back to pending, got %s", got.State)
	}
	if got.Error != "provider timeout" {
		t.Errorf("failure reason not recorded: %q", got.Error)
	}
	if !got.ScheduledFor.After(time.Now()) {
		t.Error("retry must be delayed")
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Delayed != 1 {
		t.Errorf("expected 1 delayed job, got %d", stats.Delayed)
	}

	// Not due yet, so nothing to dequeue
	next, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Error("delayed job must not be dequeued before its schedule")
	}
}

func TestQueue_NackExhaustedFails(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	job.MaxAttempts = 1
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Nack(ctx, job.ID, "hard failure"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != domain.JobStateFailed {
		t.Errorf("exhausted job must fail, got %s", got.State)
	}
	view := got.StatusView()
	if view.Status != domain.QueueStatusFailed || view.FailedReason != "hard failure" {
		t.Errorf("unexpected status view: %+v", view)
	}
}

func TestQueue_PromotesDueScheduledJobs(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	job.ScheduledFor = time.Now().Add(50 * time.Millisecond)
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := q.DequeueWithTimeout(ctx, 1); got != nil {
		t.Fatal("job must not surface before its schedule")
	}

	time.Sleep(100 * time.Millisecond)
	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != job.ID {
		t.Fatalf("due job must be promoted and dequeued, got %+v", got)
	}
}

func TestQueue_SetProgress(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.SetProgress(ctx, job.ID, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := q.GetJob(ctx, job.ID)
	if got.Progress != 0.5 {
		t.Errorf("expected progress 0.5, got %f", got.Progress)
	}
	if view := got.StatusView(); view.Status != domain.QueueStatusActive {
		t.Errorf("processing job must report active, got %s", view.Status)
	}
}

func TestQueue_CancelJob(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	job := testJob()
	job.ScheduledFor = time.Now().Add(time.Hour)
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := q.GetJob(ctx, job.ID)
	if got.State != domain.JobStateFailed || got.Error != "cancelled" {
		t.Errorf("cancelled job must be failed with reason, got %s %q", got.State, got.Error)
	}

	// Processing jobs cannot be cancelled from the queue side
	running := testJob()
	if err := q.Enqueue(ctx, running); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.CancelJob(ctx, running.ID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestQueue_GetJob_NotFound(t *testing.T) {
	q := setupTestQueue(t)
	if _, err := q.GetJob(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
