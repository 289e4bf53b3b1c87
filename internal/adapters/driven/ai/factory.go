package ai

import (
	"fmt"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Factory creates AI capabilities from stored configurations.
type Factory struct{}

// NewFactory creates a new AI capability factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateTranslator creates a Translator for the given configuration.
func (f *Factory) CreateTranslator(cfg *domain.AIConfig) (driven.Translator, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("%w: configuration %q is incomplete", domain.ErrInvalidInput, cfg.ID)
	}
	switch cfg.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAITranslator(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature), nil
	case domain.AIProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, cfg.Provider)
	}
}

// CreateReviewer creates a Reviewer for the given configuration.
func (f *Factory) CreateReviewer(cfg *domain.AIConfig) (driven.Reviewer, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("%w: configuration %q is incomplete", domain.ErrInvalidInput, cfg.ID)
	}
	switch cfg.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIReviewer(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case domain.AIProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, cfg.Provider)
	}
}
