package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driving"
)

// defaultUnitConcurrency bounds parallel per-unit AI calls within one job.
const defaultUnitConcurrency = 4

// DispatcherConfig holds dependencies for the job dispatcher.
type DispatcherConfig struct {
	Queue    driven.JobQueue
	Units    driven.UnitStore
	Files    driven.FileStore
	Configs  driven.AIConfigStore
	Resolver *Resolver
	Review   *ReviewEngine
	Logger   *slog.Logger

	// UnitConcurrency is how many units one job processes in parallel.
	UnitConcurrency int
}

// Dispatcher is the job boundary: it validates and enqueues jobs, exposes
// their status, and fans dequeued jobs out into per-unit work.
type Dispatcher struct {
	queue           driven.JobQueue
	units           driven.UnitStore
	files           driven.FileStore
	configs         driven.AIConfigStore
	resolver        *Resolver
	review          *ReviewEngine
	logger          *slog.Logger
	unitConcurrency int
}

var _ driving.JobService = (*Dispatcher)(nil)

// NewDispatcher creates a new job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.UnitConcurrency
	if concurrency <= 0 {
		concurrency = defaultUnitConcurrency
	}
	return &Dispatcher{
		queue:           cfg.Queue,
		units:           cfg.Units,
		files:           cfg.Files,
		configs:         cfg.Configs,
		resolver:        cfg.Resolver,
		review:          cfg.Review,
		logger:          logger,
		unitConcurrency: concurrency,
	}
}

// Submit validates a job's payload and references, enqueues it and returns
// its externally visible status.
func (d *Dispatcher) Submit(ctx context.Context, job *domain.Job) (*domain.JobStatus, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if _, err := d.configs.Get(ctx, job.AIConfigID); err != nil {
		return nil, fmt.Errorf("ai config %s: %w", job.AIConfigID, err)
	}
	if job.FileID != "" {
		if _, err := d.files.Get(ctx, job.FileID); err != nil {
			return nil, fmt.Errorf("file %s: %w", job.FileID, err)
		}
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	d.logger.Info("job submitted",
		"job_id", job.ID,
		"job_type", job.Type,
		"project_id", job.ProjectID,
		"file_id", job.FileID,
	)
	view := job.StatusView()
	return &view, nil
}

// Status retrieves the externally visible status of a job.
func (d *Dispatcher) Status(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	job, err := d.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	view := job.StatusView()
	return &view, nil
}

// Cancel cancels a pending job.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) error {
	return d.queue.CancelJob(ctx, jobID)
}

// ProcessJob runs one dequeued job to completion and attaches its per-unit
// report. A non-nil error means the job itself failed (bad reference,
// context cancelled) and should be nacked; per-unit failures are counted in
// the report instead of aborting the batch.
func (d *Dispatcher) ProcessJob(ctx context.Context, job *domain.Job) (*domain.JobReport, error) {
	var (
		report *domain.JobReport
		err    error
	)
	switch job.Type {
	case domain.JobTypeTranslateFile:
		report, err = d.translateFile(ctx, job, job.FileID)
	case domain.JobTypeTranslateProject:
		report, err = d.translateProject(ctx, job)
	case domain.JobTypeReviewFile:
		report, err = d.reviewFile(ctx, job, job.FileID)
	default:
		return nil, fmt.Errorf("%w: unknown job type %s", domain.ErrInvalidInput, job.Type)
	}

	if report != nil {
		// The report must land even when the job context was cancelled.
		if reportErr := d.queue.SetReport(context.WithoutCancel(ctx), job.ID, report); reportErr != nil {
			d.logger.Warn("failed to attach job report", "job_id", job.ID, "error", reportErr)
		}
	}
	return report, err
}

func resolveOptionsFromJob(job *domain.Job) driving.ResolveOptions {
	return driving.ResolveOptions{
		AIConfigID:       job.AIConfigID,
		PromptTemplateID: job.PromptTemplateID,
		SourceLanguage:   job.Options.SourceLanguage,
		TargetLanguage:   job.Options.TargetLanguage,
		Domain:           job.Options.Domain,
		RetranslateTM:    job.Options.RetranslateTM,
		AIModel:          job.Options.AIModel,
		Temperature:      job.Options.Temperature,
	}
}

// translatable reports whether a unit is eligible for this job's
// translation pass.
func translatable(u *domain.Unit, retranslateTM bool) bool {
	switch u.Status {
	case domain.UnitStatusPending, domain.UnitStatusError:
		return true
	case domain.UnitStatusTranslatedTM:
		return retranslateTM
	default:
		return false
	}
}

func (d *Dispatcher) translateFile(ctx context.Context, job *domain.Job, fileID string) (*domain.JobReport, error) {
	units, err := d.units.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list units for file %s: %w", fileID, err)
	}
	opts := resolveOptionsFromJob(job)

	var eligible []*domain.Unit
	report := &domain.JobReport{Total: len(units)}
	for _, u := range units {
		if translatable(u, opts.RetranslateTM) {
			eligible = append(eligible, u)
		} else {
			report.Skipped++
		}
	}

	d.forEachUnit(ctx, job, fileID, eligible, func(unitCtx context.Context, u *domain.Unit) unitOutcome {
		resolved, err := d.resolver.ResolveUnit(unitCtx, u.ID, opts)
		if err != nil {
			return outcomeFailed
		}
		switch resolved.Status {
		case domain.UnitStatusTranslatedTM:
			return outcomeTranslatedTM
		case domain.UnitStatusTranslated:
			return outcomeTranslatedAI
		default:
			return outcomeSkipped
		}
	}, report)

	d.refreshFileStatus(ctx, fileID)

	if ctx.Err() != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrJobCancelled, ctx.Err())
	}
	return report, nil
}

func (d *Dispatcher) translateProject(ctx context.Context, job *domain.Job) (*domain.JobReport, error) {
	files, err := d.files.ListByProject(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list files for project %s: %w", job.ProjectID, err)
	}

	total := &domain.JobReport{}
	for _, file := range files {
		if ctx.Err() != nil {
			return total, fmt.Errorf("%w: %w", domain.ErrJobCancelled, ctx.Err())
		}
		report, err := d.translateFile(ctx, job, file.ID)
		if report != nil {
			total.Total += report.Total
			total.TranslatedTM += report.TranslatedTM
			total.TranslatedAI += report.TranslatedAI
			total.Reviewed += report.Reviewed
			total.Skipped += report.Skipped
			total.Failed += report.Failed
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *Dispatcher) reviewFile(ctx context.Context, job *domain.Job, fileID string) (*domain.JobReport, error) {
	units, err := d.units.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list units for file %s: %w", fileID, err)
	}

	var eligible []*domain.Unit
	report := &domain.JobReport{Total: len(units)}
	for _, u := range units {
		switch u.Status {
		case domain.UnitStatusTranslated, domain.UnitStatusTranslatedTM, domain.UnitStatusReviewFailed:
			eligible = append(eligible, u)
		default:
			report.Skipped++
		}
	}

	reviewOpts := driving.ReviewOptions{AIConfigID: job.AIConfigID}
	d.forEachUnit(ctx, job, fileID, eligible, func(unitCtx context.Context, u *domain.Unit) unitOutcome {
		if _, err := d.review.StartReview(unitCtx, u.ID, reviewOpts); err != nil {
			return outcomeFailed
		}
		return outcomeReviewed
	}, report)

	d.refreshFileStatus(ctx, fileID)

	if ctx.Err() != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrJobCancelled, ctx.Err())
	}
	return report, nil
}

type unitOutcome int

const (
	outcomeTranslatedTM unitOutcome = iota
	outcomeTranslatedAI
	outcomeReviewed
	outcomeSkipped
	outcomeFailed
)

// forEachUnit fans units out over a bounded pool, counting each outcome
// into the report and publishing progress and refreshed file stats as
// units finish. Cancellation is observed between units; in-flight units
// run to completion and units never started are counted as skipped. One
// unit's failure never stops its siblings.
func (d *Dispatcher) forEachUnit(ctx context.Context, job *domain.Job, fileID string, units []*domain.Unit, process func(context.Context, *domain.Unit) unitOutcome, report *domain.JobReport) {
	if len(units) == 0 {
		return
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	sem := make(chan struct{}, d.unitConcurrency)

	launched := 0
	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		launched++
		wg.Add(1)
		sem <- struct{}{}
		go func(u *domain.Unit) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := process(ctx, u)

			mu.Lock()
			switch outcome {
			case outcomeTranslatedTM:
				report.TranslatedTM++
			case outcomeTranslatedAI:
				report.TranslatedAI++
			case outcomeReviewed:
				report.Reviewed++
			case outcomeSkipped:
				report.Skipped++
			case outcomeFailed:
				report.Failed++
			}
			done++
			progress := float64(done) / float64(len(units))
			mu.Unlock()

			if err := d.queue.SetProgress(ctx, job.ID, progress); err != nil {
				d.logger.Debug("failed to publish job progress", "job_id", job.ID, "error", err)
			}
			// Aggregate file status is rescanned as each unit lands, so a
			// caller polling the file mid-job sees current counts.
			d.refreshFileStatus(ctx, fileID)
		}(unit)
	}
	wg.Wait()

	if skipped := len(units) - launched; skipped > 0 {
		mu.Lock()
		report.Skipped += skipped
		mu.Unlock()
		d.logger.Warn("job cancelled before all units started",
			"job_id", job.ID,
			"units_not_started", skipped,
		)
	}
}

func (d *Dispatcher) refreshFileStatus(ctx context.Context, fileID string) {
	ctx = context.WithoutCancel(ctx)
	units, err := d.units.ListByFile(ctx, fileID)
	if err != nil {
		d.logger.Warn("failed to list units for file status refresh", "file_id", fileID, "error", err)
		return
	}
	stats := domain.StatsFromUnits(units)
	if err := d.files.UpdateStatus(ctx, fileID, domain.StatusFromStats(stats), stats); err != nil {
		d.logger.Warn("failed to refresh file status", "file_id", fileID, "error", err)
	}
}
