package driven

import (
	"context"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// TranslationRequest is the input to the AI translation capability.
type TranslationRequest struct {
	SourceText        string
	SourceLanguage    string
	TargetLanguage    string
	Domain            string
	Terminology       domain.Terminology
	SystemInstruction string // overrides the built-in instruction when set
	UserPrompt        string // overrides the built-in prompt when set
	Model             string
	Temperature       float32
}

// TranslationResult is the output of the AI translation capability.
type TranslationResult struct {
	TranslatedText string
	Model          string
	TokenCount     domain.TokenCount
	ProcessingTime float64 // seconds
}

// Translator is the AI translation capability. Failures surface as
// *domain.CapabilityError; retries happen at the job level.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (*TranslationResult, error)
}

// ReviewRequest is the input to the AI review capability.
type ReviewRequest struct {
	OriginalContent   string
	TranslatedContent string
	SourceLanguage    string
	TargetLanguage    string
	CustomPrompt      string
	ContextSegments   []string
	Model             string
}

// ReviewResult is the output of the AI review capability. Issues arrive
// untagged; the review engine forces each to status open.
type ReviewResult struct {
	SuggestedTranslation string
	Issues               []domain.Issue
	Scores               map[string]int
	Model                string
	TokenCount           domain.TokenCount
	ProcessingTime       float64 // seconds
}

// Reviewer is the AI review capability.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error)
}
