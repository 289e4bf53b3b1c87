// Package driving defines the interfaces through which external layers
// (HTTP, queue transport) invoke this core. Authentication, routing and
// request validation live in those layers.
package driving

import (
	"context"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// ResolveOptions configures one translation resolution pass.
type ResolveOptions struct {
	AIConfigID       string
	PromptTemplateID string
	SourceLanguage   string
	TargetLanguage   string
	Domain           string
	Terminology      domain.Terminology
	RetranslateTM    bool
	AIModel          string
	Temperature      float32
}

// TranslationPipeline drives extraction and per-unit translation.
type TranslationPipeline interface {
	// ExtractFile parses a stored document and atomically replaces the
	// file's units with the freshly extracted set.
	ExtractFile(ctx context.Context, fileID string, data []byte) ([]*domain.Unit, error)

	// ResolveUnit resolves one unit: TM lookup first, AI call otherwise.
	ResolveUnit(ctx context.Context, unitID string, opts ResolveOptions) (*domain.Unit, error)

	// ExportFile writes translated text back into the original document.
	ExportFile(ctx context.Context, fileID string, original []byte) ([]byte, error)
}

// ReviewPipeline drives the review pass over translated units.
type ReviewPipeline interface {
	// StartReview runs the AI review and records the suggested issues.
	StartReview(ctx context.Context, unitID string, opts ReviewOptions) (*domain.Unit, error)

	// ResolveIssue applies a reviewer decision to one issue.
	ResolveIssue(ctx context.Context, unitID string, issueIndex int, resolution domain.Resolution, resolvedBy string) (*domain.Unit, error)

	// CompleteReview records the reviewer-confirmed final text.
	CompleteReview(ctx context.Context, unitID string, finalText string) (*domain.Unit, error)

	// Finalize computes the quality score and marks the unit COMPLETED.
	Finalize(ctx context.Context, unitID string, actor domain.Role, allowOpenIssues bool) (*domain.Unit, error)
}

// ReviewOptions configures one review pass.
type ReviewOptions struct {
	AIConfigID      string
	CustomPrompt    string
	ContextSegments []string
	Skip            bool // record the unit as reviewed without an AI call
}

// JobService is the dispatcher boundary: job submission and status.
type JobService interface {
	Submit(ctx context.Context, job *domain.Job) (*domain.JobStatus, error)
	Status(ctx context.Context, jobID string) (*domain.JobStatus, error)
	Cancel(ctx context.Context, jobID string) error
}
