package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// MockTranslator is a configurable Translator for testing. TranslateFunc
// takes precedence; without it every request echoes the source prefixed
// with the target language.
type MockTranslator struct {
	mu            sync.Mutex
	TranslateFunc func(ctx context.Context, req driven.TranslationRequest) (*driven.TranslationResult, error)

	// Requests records every request in order
	Requests []driven.TranslationRequest
}

// NewMockTranslator creates a new MockTranslator
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{}
}

func (m *MockTranslator) Translate(ctx context.Context, req driven.TranslationRequest) (*driven.TranslationResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	fn := m.TranslateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &driven.TranslationResult{
		TranslatedText: "[" + req.TargetLanguage + "] " + req.SourceText,
		Model:          "mock",
	}, nil
}

// MockReviewer is a configurable Reviewer for testing. ReviewFunc takes
// precedence; without it every request passes review with no issues.
type MockReviewer struct {
	mu         sync.Mutex
	ReviewFunc func(ctx context.Context, req driven.ReviewRequest) (*driven.ReviewResult, error)

	// Requests records every request in order
	Requests []driven.ReviewRequest
}

// NewMockReviewer creates a new MockReviewer
func NewMockReviewer() *MockReviewer {
	return &MockReviewer{}
}

func (m *MockReviewer) Review(ctx context.Context, req driven.ReviewRequest) (*driven.ReviewResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	fn := m.ReviewFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &driven.ReviewResult{
		SuggestedTranslation: req.TranslatedContent,
		Issues:               []domain.Issue{},
		Model:                "mock",
	}, nil
}
