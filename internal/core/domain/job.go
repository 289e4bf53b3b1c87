package domain

import "time"

// JobType identifies the type of background job
type JobType string

const (
	// JobTypeTranslateFile translates every unresolved unit in one file
	JobTypeTranslateFile JobType = "translate_file"
	// JobTypeTranslateProject translates every file in a project
	JobTypeTranslateProject JobType = "translate_project"
	// JobTypeReviewFile runs the AI review pass over one file
	JobTypeReviewFile JobType = "review_file"
)

// JobState represents the current state of a job
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// JobOptions enumerates every recognized per-job option. Validated once at
// the boundary; zero values mean "use the file's / config's default".
type JobOptions struct {
	SourceLanguage string  `json:"source_language,omitempty"`
	TargetLanguage string  `json:"target_language,omitempty"`
	Domain         string  `json:"domain,omitempty"`
	RetranslateTM  bool    `json:"retranslate_tm,omitempty"`
	AIModel        string  `json:"ai_model,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
}

// Job represents a background job consumed from the dispatcher boundary.
// It fans out into per-unit work inside the worker.
type Job struct {
	// ID is the unique identifier for this job
	ID string `json:"id"`

	// Type identifies what kind of job this is
	Type JobType `json:"type"`

	// ProjectID is the project this job belongs to
	ProjectID string `json:"project_id"`

	// FileID is set for file-level jobs, empty for project-level ones
	FileID string `json:"file_id,omitempty"`

	// AIConfigID selects the AI capability configuration to use
	AIConfigID string `json:"ai_config_id"`

	// PromptTemplateID selects the instruction template, empty for default
	PromptTemplateID string `json:"prompt_template_id,omitempty"`

	// Options carries per-job overrides
	Options JobOptions `json:"options"`

	// State is the current state of the job
	State JobState `json:"state"`

	// Progress is the fraction of per-unit work finished, 0-1
	Progress float64 `json:"progress"`

	// Attempts is how many times this job has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// Report holds per-unit outcome counts once the job finishes
	Report *JobReport `json:"report,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the job should be processed (for delayed retries)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// JobReport gives per-unit outcome counts so a caller can distinguish
// "done" from "done with exceptions".
type JobReport struct {
	Total        int `json:"total"`
	TranslatedTM int `json:"translated_tm"`
	TranslatedAI int `json:"translated_ai"`
	Reviewed     int `json:"reviewed"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// HasFailures reports whether any unit ended in a failed state.
func (r *JobReport) HasFailures() bool {
	return r != nil && r.Failed > 0
}

// NewJob creates a new job with default values
func NewJob(jobType JobType, projectID string, opts JobOptions) *Job {
	now := time.Now()
	return &Job{
		ID:           GenerateID(),
		Type:         jobType,
		ProjectID:    projectID,
		Options:      opts,
		State:        JobStatePending,
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewTranslateFileJob creates a job to translate one file
func NewTranslateFileJob(projectID, fileID, aiConfigID string, opts JobOptions) *Job {
	job := NewJob(JobTypeTranslateFile, projectID, opts)
	job.FileID = fileID
	job.AIConfigID = aiConfigID
	return job
}

// NewTranslateProjectJob creates a job to translate every file in a project
func NewTranslateProjectJob(projectID, aiConfigID string, opts JobOptions) *Job {
	job := NewJob(JobTypeTranslateProject, projectID, opts)
	job.AIConfigID = aiConfigID
	return job
}

// NewReviewFileJob creates a job to review one file's translations
func NewReviewFileJob(projectID, fileID, aiConfigID string, opts JobOptions) *Job {
	job := NewJob(JobTypeReviewFile, projectID, opts)
	job.FileID = fileID
	job.AIConfigID = aiConfigID
	return job
}

// Validate checks the payload once at the dispatcher boundary.
func (j *Job) Validate() error {
	if j.ProjectID == "" || j.AIConfigID == "" {
		return ErrInvalidInput
	}
	switch j.Type {
	case JobTypeTranslateFile, JobTypeReviewFile:
		if j.FileID == "" {
			return ErrInvalidInput
		}
	case JobTypeTranslateProject:
	default:
		return ErrInvalidInput
	}
	return nil
}

// CanRetry returns true if the job can be retried
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// IsReady returns true if the job is ready to be processed
func (j *Job) IsReady() bool {
	return j.State == JobStatePending && time.Now().After(j.ScheduledFor)
}

// MarkProcessing updates the job to processing state
func (j *Job) MarkProcessing() {
	now := time.Now()
	j.State = JobStateProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	j.Attempts++
}

// MarkCompleted updates the job to completed state with its final report
func (j *Job) MarkCompleted(report *JobReport) {
	now := time.Now()
	j.State = JobStateCompleted
	j.Report = report
	j.Progress = 1
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = ""
}

// MarkFailed updates the job to failed state
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.State = JobStateFailed
	j.UpdatedAt = now
	j.Error = err
}

// Retry resets the job for retry with exponential backoff
func (j *Job) Retry(err string) {
	now := time.Now()
	j.State = JobStatePending
	j.UpdatedAt = now
	j.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc., capped at 5 minutes
	backoff := time.Duration(1<<j.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	j.ScheduledFor = now.Add(backoff)
}

// QueueStatus is the job-state vocabulary exposed to the dispatcher
// collaborator.
type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "waiting"
	QueueStatusActive    QueueStatus = "active"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusFailed    QueueStatus = "failed"
	QueueStatusDelayed   QueueStatus = "delayed"
	QueueStatusUnknown   QueueStatus = "unknown"
)

// JobStatus is the externally visible view of a job.
type JobStatus struct {
	JobID        string      `json:"job_id"`
	Status       QueueStatus `json:"status"`
	Progress     float64     `json:"progress"`
	FailedReason string      `json:"failed_reason,omitempty"`
	ReturnValue  *JobReport  `json:"return_value,omitempty"`
}

// StatusView maps the internal job state onto the exported vocabulary.
func (j *Job) StatusView() JobStatus {
	view := JobStatus{JobID: j.ID, Progress: j.Progress}
	switch j.State {
	case JobStatePending:
		if j.ScheduledFor.After(time.Now()) {
			view.Status = QueueStatusDelayed
		} else {
			view.Status = QueueStatusWaiting
		}
	case JobStateProcessing:
		view.Status = QueueStatusActive
	case JobStateCompleted:
		view.Status = QueueStatusCompleted
		view.ReturnValue = j.Report
	case JobStateFailed:
		view.Status = QueueStatusFailed
		view.FailedReason = j.Error
	default:
		view.Status = QueueStatusUnknown
	}
	return view
}
