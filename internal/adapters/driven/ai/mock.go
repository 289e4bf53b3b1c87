package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Translator = (*MockProvider)(nil)
	_ driven.Reviewer   = (*MockProvider)(nil)
)

// MockProvider is a deterministic no-network provider for local development
// and end-to-end runs without an API key. Translations are the source text
// tagged with the target language; reviews always pass.
type MockProvider struct{}

// NewMockProvider creates a new MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Translate returns a tagged copy of the source text.
func (p *MockProvider) Translate(ctx context.Context, req driven.TranslationRequest) (*driven.TranslationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &driven.TranslationResult{
		TranslatedText: fmt.Sprintf("[%s] %s", req.TargetLanguage, req.SourceText),
		Model:          string(domain.AIProviderMock),
	}, nil
}

// Review accepts every translation unchanged with no issues.
func (p *MockProvider) Review(ctx context.Context, req driven.ReviewRequest) (*driven.ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &driven.ReviewResult{
		SuggestedTranslation: req.TranslatedContent,
		Issues:               []domain.Issue{},
		Scores:               map[string]int{"accuracy": 100, "fluency": 100},
		Model:                string(domain.AIProviderMock),
	}, nil
}
