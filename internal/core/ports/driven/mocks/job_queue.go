package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// MockJobQueue is a mock implementation of JobQueue for testing
type MockJobQueue struct {
	mu        sync.Mutex
	pending   []*domain.Job
	jobs      map[string]*domain.Job
	cancelled map[string]bool
	completed int64
	failed    int64
	closed    bool
}

// NewMockJobQueue creates a new MockJobQueue
func NewMockJobQueue() *MockJobQueue {
	return &MockJobQueue{
		jobs:      make(map[string]*domain.Job),
		cancelled: make(map[string]bool),
	}
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	m.pending = append(m.pending, &cp)
	return nil
}

func (m *MockJobQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	for {
		job, err := m.DequeueWithTimeout(ctx, 1)
		if err != nil || job != nil {
			return job, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

func (m *MockJobQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, job := range m.pending {
		if m.cancelled[job.ID] {
			continue
		}
		if !job.ScheduledFor.After(time.Now()) {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			job.MarkProcessing()
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockJobQueue) Ack(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.MarkCompleted(job.Report)
	m.completed++
	return nil
}

func (m *MockJobQueue) Nack(ctx context.Context, jobID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.CanRetry() {
		job.Retry(reason)
		m.pending = append(m.pending, job)
		return nil
	}
	job.MarkFailed(reason)
	m.failed++
	return nil
}

func (m *MockJobQueue) SetProgress(ctx context.Context, jobID string, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Progress = progress
	job.UpdatedAt = time.Now()
	return nil
}

func (m *MockJobQueue) SetReport(ctx context.Context, jobID string, report *domain.JobReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Report = report
	job.UpdatedAt = time.Now()
	return nil
}

func (m *MockJobQueue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobQueue) CancelJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.State != domain.JobStatePending {
		return domain.ErrConflict
	}
	m.cancelled[jobID] = true
	job.MarkFailed("cancelled")
	return nil
}

func (m *MockJobQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{
		Completed: m.completed,
		Failed:    m.failed,
	}
	now := time.Now()
	for _, job := range m.pending {
		if m.cancelled[job.ID] {
			continue
		}
		if job.ScheduledFor.After(now) {
			stats.Delayed++
		} else {
			stats.Waiting++
		}
	}
	for _, job := range m.jobs {
		if job.State == domain.JobStateProcessing {
			stats.Active++
		}
	}
	return stats, nil
}

func (m *MockJobQueue) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrServiceUnavailable
	}
	return nil
}

func (m *MockJobQueue) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
