package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven/mocks"
)

// countingFactory builds mock capabilities and counts how often it is asked.
type countingFactory struct {
	translatorBuilds int
	reviewerBuilds   int
	err              error
}

func (f *countingFactory) CreateTranslator(cfg *domain.AIConfig) (driven.Translator, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.translatorBuilds++
	return mocks.NewMockTranslator(), nil
}

func (f *countingFactory) CreateReviewer(cfg *domain.AIConfig) (driven.Reviewer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reviewerBuilds++
	return mocks.NewMockReviewer(), nil
}

func seedConfig(t *testing.T, store *mocks.MockAIConfigStore, id string) *domain.AIConfig {
	t.Helper()
	cfg := &domain.AIConfig{
		ID:        id,
		Name:      "default",
		Provider:  domain.AIProviderMock,
		Model:     "mock",
		UpdatedAt: time.Now(),
	}
	if err := store.Save(context.Background(), cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return cfg
}

func TestServices_TranslatorCachedPerConfig(t *testing.T) {
	store := mocks.NewMockAIConfigStore()
	seedConfig(t, store, "cfg-1")
	factory := &countingFactory{}
	services := NewServices(factory, store)

	first, err := services.Translator(context.Background(), "cfg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := services.Translator(context.Background(), "cfg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected the cached translator to be reused")
	}
	if factory.translatorBuilds != 1 {
		t.Errorf("expected 1 build, got %d", factory.translatorBuilds)
	}
}

func TestServices_ConfigChangeRebuildsCapability(t *testing.T) {
	store := mocks.NewMockAIConfigStore()
	cfg := seedConfig(t, store, "cfg-1")
	factory := &countingFactory{}
	services := NewServices(factory, store)

	if _, err := services.Translator(context.Background(), "cfg-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Model = "mock-v2"
	cfg.UpdatedAt = cfg.UpdatedAt.Add(time.Minute)
	if err := store.Save(context.Background(), cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}

	if _, err := services.Translator(context.Background(), "cfg-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory.translatorBuilds != 2 {
		t.Errorf("expected rebuild after config change, got %d builds", factory.translatorBuilds)
	}
}

func TestServices_MissingConfig(t *testing.T) {
	services := NewServices(&countingFactory{}, mocks.NewMockAIConfigStore())

	if _, err := services.Translator(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := services.Reviewer(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := services.Translator(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty id, got %v", err)
	}
}

func TestServices_PinnedCapabilityBypassesStore(t *testing.T) {
	factory := &countingFactory{}
	services := NewServices(factory, mocks.NewMockAIConfigStore())

	pinned := mocks.NewMockTranslator()
	services.SetTranslator("cfg-1", pinned)

	// No stored config exists, but the pin serves anyway.
	got, err := services.Translator(context.Background(), "cfg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != pinned {
		t.Error("expected the pinned translator")
	}
	if factory.translatorBuilds != 0 {
		t.Error("factory should not be used for pinned capabilities")
	}

	services.SetTranslator("cfg-1", nil)
	if _, err := services.Translator(context.Background(), "cfg-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after unpinning, got %v", err)
	}
}

func TestServices_InvalidateDropsCache(t *testing.T) {
	store := mocks.NewMockAIConfigStore()
	seedConfig(t, store, "cfg-1")
	factory := &countingFactory{}
	services := NewServices(factory, store)

	if _, err := services.Reviewer(context.Background(), "cfg-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	services.Invalidate("cfg-1")
	if _, err := services.Reviewer(context.Background(), "cfg-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory.reviewerBuilds != 2 {
		t.Errorf("expected rebuild after invalidate, got %d builds", factory.reviewerBuilds)
	}
}

func TestServices_FactoryErrorPropagates(t *testing.T) {
	store := mocks.NewMockAIConfigStore()
	seedConfig(t, store, "cfg-1")
	wantErr := errors.New("bad provider")
	services := NewServices(&countingFactory{err: wantErr}, store)

	if _, err := services.Translator(context.Background(), "cfg-1"); !errors.Is(err, wantErr) {
		t.Errorf("expected factory error, got %v", err)
	}
}
