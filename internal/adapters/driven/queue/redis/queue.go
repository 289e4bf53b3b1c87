package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

const (
	// Stream names
	jobStream     = "lingua:jobs"
	jobGroup      = "lingua:workers"
	scheduledJobs = "lingua:scheduled"

	// Key prefixes
	jobKeyPrefix = "lingua:job:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Claim timeout - how long before a job is considered abandoned
	claimTimeout = 5 * time.Minute

	// Job data TTL; a job untouched for this long is gone
	jobTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.JobQueue = (*Queue)(nil)

// Queue implements JobQueue using Redis Streams. Consumer groups give
// reliable delivery with acknowledgment tracking; a sorted set holds
// delayed retries until they are due.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed job queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, jobStream, jobGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds a job to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return errors.New("job is required")
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL)

	if job.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.Unix()),
			Member: job.ID,
		})
	} else {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: jobStream,
			Values: jobStreamValues(job),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue retrieves the next available job, blocking until one is
// available or the context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, error) {
	return q.DequeueWithTimeout(ctx, 0) // 0 means block forever
}

// DequeueWithTimeout retrieves the next available job, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	// Promote due delayed jobs first; best effort
	_ = q.promoteScheduledJobs(ctx)

	// Try to claim abandoned jobs before reading new ones
	if job, err := q.claimAbandonedJob(ctx); err == nil && job != nil {
		return job, nil
	}

	blockDuration := time.Duration(timeout) * time.Second

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: q.consumerName,
		Streams:  []string{jobStream, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No jobs available
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	jobID, ok := msg.Values["job_id"].(string)
	if !ok {
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		return nil, nil
	}

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Job data expired or was purged
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job data: %w", err)
	}

	// Cancelled before a worker got to it
	if job.State != domain.JobStatePending {
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		q.client.XDel(ctx, jobStream, msg.ID)
		return nil, nil
	}

	job.MarkProcessing()
	q.storeJob(ctx, job)
	q.client.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)

	return job, nil
}

// Ack acknowledges successful completion of a job.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	msgID, err := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	job, err := q.GetJob(ctx, jobID)
	if err == nil {
		job.MarkCompleted(job.Report)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
	}

	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack records a failed attempt. The job goes to the delayed set with
// backoff while attempts remain, otherwise it is marked failed.
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	msgID, _ := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	if job.CanRetry() {
		job.Retry(reason)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.Unix()),
			Member: job.ID,
		})
	} else {
		job.MarkFailed(reason)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
	}

	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}
	return nil
}

// SetProgress updates a job's progress fraction while it runs.
func (q *Queue) SetProgress(ctx context.Context, jobID string, progress float64) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Progress = progress
	job.UpdatedAt = time.Now()
	return q.storeJob(ctx, job)
}

// SetReport attaches the final per-unit outcome report.
func (q *Queue) SetReport(ctx context.Context, jobID string, report *domain.JobReport) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Report = report
	job.UpdatedAt = time.Now()
	return q.storeJob(ctx, job)
}

// GetJob retrieves a job by ID.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// CancelJob marks a pending job as cancelled. Jobs already processing
// finish their current unit and stop at the next cancellation point.
func (q *Queue) CancelJob(ctx context.Context, jobID string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State != domain.JobStatePending {
		return domain.ErrConflict
	}

	pipe := q.client.Pipeline()
	pipe.ZRem(ctx, scheduledJobs, jobID)

	job.MarkFailed("cancelled")
	jobData, _ := json.Marshal(job)
	pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	info, err := q.client.XInfoStream(ctx, jobStream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Stream might not exist yet
		if !isStreamNotExistsError(err) {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}
	} else if err == nil {
		stats.Waiting = int64(info.Length)
	}

	delayed, err := q.client.ZCard(ctx, scheduledJobs).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get scheduled count: %w", err)
	}
	stats.Delayed = delayed

	groups, err := q.client.XInfoGroups(ctx, jobStream).Result()
	if err == nil {
		for _, group := range groups {
			if group.Name == jobGroup {
				stats.Active = int64(group.Pending)
				// In-flight messages are still counted in the stream length
				stats.Waiting -= stats.Active
				break
			}
		}
	}

	// Completed/failed counts need a key scan; acceptable at queue sizes here
	var cursor uint64
	for {
		keys, newCursor, err := q.client.Scan(ctx, cursor, jobKeyPrefix+"*", 100).Result()
		if err != nil {
			break
		}
		for _, key := range keys {
			if len(key) > 4 && key[len(key)-4:] == ":msg" {
				continue
			}
			data, _ := q.client.Get(ctx, key).Result()
			var job domain.Job
			if json.Unmarshal([]byte(data), &job) == nil {
				switch job.State {
				case domain.JobStateCompleted:
					stats.Completed++
				case domain.JobStateFailed:
					stats.Failed++
				}
			}
		}
		cursor = newCursor
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

func (q *Queue) storeJob(ctx context.Context, job *domain.Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL).Err()
}

func jobStreamValues(job *domain.Job) map[string]interface{} {
	return map[string]interface{}{
		"job_id":     job.ID,
		"type":       string(job.Type),
		"project_id": job.ProjectID,
	}
}

// promoteScheduledJobs moves due delayed jobs to the main stream.
func (q *Queue) promoteScheduledJobs(ctx context.Context) error {
	now := time.Now().Unix()

	due, err := q.client.ZRangeByScore(ctx, scheduledJobs, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, jobID := range due {
		job, err := q.GetJob(ctx, jobID)
		if err != nil {
			pipe.ZRem(ctx, scheduledJobs, jobID)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: jobStream,
			Values: jobStreamValues(job),
		})
		pipe.ZRem(ctx, scheduledJobs, jobID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedJob tries to claim a job abandoned by another worker.
func (q *Queue) claimAbandonedJob(ctx context.Context) (*domain.Job, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: jobStream,
		Group:  jobGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   jobStream,
			Group:    jobGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		msg := claimed[0]
		jobID, ok := msg.Values["job_id"].(string)
		if !ok {
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			q.client.XDel(ctx, jobStream, msg.ID)
			continue
		}

		job, err := q.GetJob(ctx, jobID)
		if err != nil {
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			q.client.XDel(ctx, jobStream, msg.ID)
			continue
		}

		job.MarkProcessing()
		q.storeJob(ctx, job)
		q.client.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)

		return job, nil
	}

	return nil, nil
}

// Helper functions

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isStreamNotExistsError(err error) bool {
	return err != nil && (err.Error() == "ERR no such key" ||
		err.Error() == "ERR The XINFO subcommand requires the key to exist")
}
