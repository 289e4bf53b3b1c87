package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driving"
)

// ReviewEngineConfig holds dependencies for the review engine.
type ReviewEngineConfig struct {
	Units        driven.UnitStore
	Files        driven.FileStore
	Capabilities CapabilitySource
	Logger       *slog.Logger
}

// ReviewEngine drives the review pass: AI-suggested issues, reviewer
// decisions, final text and quality scoring.
type ReviewEngine struct {
	units        driven.UnitStore
	files        driven.FileStore
	capabilities CapabilitySource
	logger       *slog.Logger
}

var _ driving.ReviewPipeline = (*ReviewEngine)(nil)

// NewReviewEngine creates a new review engine.
func NewReviewEngine(cfg ReviewEngineConfig) *ReviewEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewEngine{
		units:        cfg.Units,
		files:        cfg.Files,
		capabilities: cfg.Capabilities,
		logger:       logger,
	}
}

// StartReview runs the AI review over a translated unit and records the
// suggested translation and issues. With Skip set the unit moves to
// REVIEW_PENDING without an AI call, marked as explicitly skipped.
// Capability failures land the unit in REVIEW_FAILED with the message
// recorded; the error is also returned so batch callers can count it.
func (e *ReviewEngine) StartReview(ctx context.Context, unitID string, opts driving.ReviewOptions) (*domain.Unit, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}

	if err := unit.TransitionTo(domain.UnitStatusReviewing); err != nil {
		return unit, err
	}
	if err := e.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unitID, err)
	}

	if opts.Skip {
		unit.ReviewSkipped = true
		if err := unit.TransitionTo(domain.UnitStatusReviewPending); err != nil {
			return unit, err
		}
		if err := e.units.Update(ctx, unit); err != nil {
			return nil, fmt.Errorf("update unit %s: %w", unitID, err)
		}
		e.logger.Info("review skipped", "unit_id", unitID)
		return unit, nil
	}

	file, err := e.files.Get(ctx, unit.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", unit.FileID, err)
	}

	reviewer, err := e.capabilities.Reviewer(ctx, opts.AIConfigID)
	if err != nil {
		return e.failReview(ctx, unit, err)
	}

	result, err := reviewer.Review(ctx, driven.ReviewRequest{
		OriginalContent:   unit.SourceText,
		TranslatedContent: unit.Translation,
		SourceLanguage:    file.SourceLanguage,
		TargetLanguage:    file.TargetLanguage,
		CustomPrompt:      opts.CustomPrompt,
		ContextSegments:   opts.ContextSegments,
	})
	if err != nil {
		return e.failReview(ctx, unit, err)
	}

	unit.Review = result.SuggestedTranslation
	if unit.Review == "" {
		unit.Review = unit.Translation
	}
	unit.Issues = make([]domain.Issue, len(result.Issues))
	for i, issue := range result.Issues {
		issue.Status = domain.IssueStatusOpen
		issue.Resolution = nil
		issue.ResolvedBy = ""
		issue.ResolvedAt = nil
		unit.Issues[i] = issue
	}
	now := time.Now()
	unit.ReviewMeta = &domain.ReviewMeta{
		AIModel:        result.Model,
		TokenCount:     result.TokenCount,
		ProcessingTime: result.ProcessingTime,
		ReviewedAt:     &now,
	}

	if err := unit.TransitionTo(domain.UnitStatusReviewPending); err != nil {
		return unit, err
	}
	if err := e.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unitID, err)
	}

	e.logger.Info("review completed by ai",
		"unit_id", unitID,
		"issues", len(unit.Issues),
		"model", result.Model,
	)
	return unit, nil
}

func (e *ReviewEngine) failReview(ctx context.Context, unit *domain.Unit, cause error) (*domain.Unit, error) {
	e.logger.Error("review failed", "unit_id", unit.ID, "error", cause)
	if err := unit.TransitionTo(domain.UnitStatusReviewFailed); err != nil {
		return unit, err
	}
	unit.Error = cause.Error()
	if err := e.units.Update(ctx, unit); err != nil {
		return nil, err
	}
	return unit, cause
}

// ResolveIssue applies a reviewer decision to one issue. Unknown resolution
// actions are treated as accepted, with a warning logged.
func (e *ReviewEngine) ResolveIssue(ctx context.Context, unitID string, issueIndex int, resolution domain.Resolution, resolvedBy string) (*domain.Unit, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}
	if unit.Status != domain.UnitStatusReviewPending && unit.Status != domain.UnitStatusReviewCompleted {
		return nil, fmt.Errorf("%w: unit %s is %s, issues are not resolvable", domain.ErrInvalidInput, unitID, unit.Status)
	}
	if issueIndex < 0 || issueIndex >= len(unit.Issues) {
		return nil, fmt.Errorf("%w: issue index %d out of range for unit %s", domain.ErrInvalidInput, issueIndex, unitID)
	}

	switch resolution.Action {
	case domain.ActionAccept, domain.ActionModify, domain.ActionReject:
	default:
		e.logger.Warn("unknown resolution action, treating as accepted",
			"unit_id", unitID,
			"issue_index", issueIndex,
			"action", resolution.Action,
		)
	}

	issue := &unit.Issues[issueIndex]
	if err := issue.Resolve(resolution, resolvedBy); err != nil {
		return nil, fmt.Errorf("resolve issue %d on unit %s: %w", issueIndex, unitID, err)
	}
	unit.UpdatedAt = time.Now()

	if err := e.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unitID, err)
	}
	return unit, nil
}

// CompleteReview records the reviewer-confirmed final text and computes the
// modification degree against the pre-review translation.
func (e *ReviewEngine) CompleteReview(ctx context.Context, unitID string, finalText string) (*domain.Unit, error) {
	if strings.TrimSpace(finalText) == "" {
		return nil, fmt.Errorf("%w: final text required", domain.ErrInvalidInput)
	}

	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}

	unit.FinalText = finalText
	// Reviewer-confirmed text is plain, never document-native XML.
	unit.RawTarget = false
	if unit.ReviewMeta == nil {
		unit.ReviewMeta = &domain.ReviewMeta{}
	}
	unit.ReviewMeta.ModificationDegree = domain.ModificationDegree(unit.Translation, finalText)

	if err := unit.TransitionTo(domain.UnitStatusReviewCompleted); err != nil {
		return unit, err
	}
	if err := e.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unitID, err)
	}

	e.logger.Info("review confirmed",
		"unit_id", unitID,
		"modification_degree", unit.ReviewMeta.ModificationDegree,
	)
	return unit, nil
}

// Finalize computes the unit's quality score and marks it COMPLETED.
// Role and open-issue checks are enforced by the aggregate; the aggregate
// file status is recomputed best-effort afterwards.
func (e *ReviewEngine) Finalize(ctx context.Context, unitID string, actor domain.Role, allowOpenIssues bool) (*domain.Unit, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}

	if err := unit.Finalize(actor, allowOpenIssues); err != nil {
		return unit, err
	}

	score, openCount := domain.QualityScore(unit.Issues)
	unit.QualityScore = &score
	if openCount > 0 {
		e.logger.Warn("unit finalized with open issues",
			"unit_id", unitID,
			"open_issues", openCount,
			"quality_score", score,
		)
	}

	if err := e.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unitID, err)
	}

	e.refreshFileStatus(ctx, unit.FileID)

	e.logger.Info("unit finalized", "unit_id", unitID, "quality_score", score)
	return unit, nil
}

// refreshFileStatus recomputes the aggregate file status from unit
// statuses. Failures are logged, not propagated; the per-unit operation
// already succeeded.
func (e *ReviewEngine) refreshFileStatus(ctx context.Context, fileID string) {
	units, err := e.units.ListByFile(ctx, fileID)
	if err != nil {
		e.logger.Warn("failed to list units for file status refresh", "file_id", fileID, "error", err)
		return
	}
	stats := domain.StatsFromUnits(units)
	if err := e.files.UpdateStatus(ctx, fileID, domain.StatusFromStats(stats), stats); err != nil {
		e.logger.Warn("failed to refresh file status", "file_id", fileID, "error", err)
	}
}
