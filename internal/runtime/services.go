// Package runtime holds the registry of dynamically configurable AI
// capabilities. Capabilities are built per stored configuration and can be
// swapped at runtime without restarting workers.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// CapabilityFactory builds AI capabilities from stored configurations.
type CapabilityFactory interface {
	CreateTranslator(cfg *domain.AIConfig) (driven.Translator, error)
	CreateReviewer(cfg *domain.AIConfig) (driven.Reviewer, error)
}

type translatorEntry struct {
	translator driven.Translator
	updatedAt  time.Time
	pinned     bool
}

type reviewerEntry struct {
	reviewer  driven.Reviewer
	updatedAt time.Time
	pinned    bool
}

// Services resolves AI capabilities by configuration ID.
// Built capabilities are cached per config and invalidated when the stored
// configuration changes. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	factory CapabilityFactory
	configs driven.AIConfigStore

	translators map[string]translatorEntry
	reviewers   map[string]reviewerEntry
}

// NewServices creates a new capability registry.
func NewServices(factory CapabilityFactory, configs driven.AIConfigStore) *Services {
	return &Services{
		factory:     factory,
		configs:     configs,
		translators: make(map[string]translatorEntry),
		reviewers:   make(map[string]reviewerEntry),
	}
}

// Translator returns the translation capability for the given config ID,
// building it on first use and rebuilding it when the config changed.
func (s *Services) Translator(ctx context.Context, configID string) (driven.Translator, error) {
	if configID == "" {
		return nil, fmt.Errorf("%w: ai config id required", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	entry, ok := s.translators[configID]
	s.mu.RUnlock()
	if ok && entry.pinned {
		return entry.translator, nil
	}

	cfg, err := s.configs.Get(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load ai config %s: %w", configID, err)
	}
	if ok && entry.updatedAt.Equal(cfg.UpdatedAt) {
		return entry.translator, nil
	}

	translator, err := s.factory.CreateTranslator(cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.translators[configID] = translatorEntry{translator: translator, updatedAt: cfg.UpdatedAt}
	s.mu.Unlock()
	return translator, nil
}

// Reviewer returns the review capability for the given config ID,
// building it on first use and rebuilding it when the config changed.
func (s *Services) Reviewer(ctx context.Context, configID string) (driven.Reviewer, error) {
	if configID == "" {
		return nil, fmt.Errorf("%w: ai config id required", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	entry, ok := s.reviewers[configID]
	s.mu.RUnlock()
	if ok && entry.pinned {
		return entry.reviewer, nil
	}

	cfg, err := s.configs.Get(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load ai config %s: %w", configID, err)
	}
	if ok && entry.updatedAt.Equal(cfg.UpdatedAt) {
		return entry.reviewer, nil
	}

	reviewer, err := s.factory.CreateReviewer(cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.reviewers[configID] = reviewerEntry{reviewer: reviewer, updatedAt: cfg.UpdatedAt}
	s.mu.Unlock()
	return reviewer, nil
}

// SetTranslator pins a translator for a config ID, bypassing the store.
// Passing nil removes the pin.
func (s *Services) SetTranslator(configID string, translator driven.Translator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if translator == nil {
		delete(s.translators, configID)
		return
	}
	s.translators[configID] = translatorEntry{translator: translator, pinned: true}
}

// SetReviewer pins a reviewer for a config ID, bypassing the store.
// Passing nil removes the pin.
func (s *Services) SetReviewer(configID string, reviewer driven.Reviewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reviewer == nil {
		delete(s.reviewers, configID)
		return
	}
	s.reviewers[configID] = reviewerEntry{reviewer: reviewer, pinned: true}
}

// Invalidate drops cached capabilities for a config ID. The next lookup
// rebuilds them from the stored configuration.
func (s *Services) Invalidate(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.translators, configID)
	delete(s.reviewers, configID)
}

// Close drops every cached capability.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translators = make(map[string]translatorEntry)
	s.reviewers = make(map[string]reviewerEntry)
	return nil
}
