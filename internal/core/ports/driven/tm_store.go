package driven

import (
	"context"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// TMStore is the translation-memory store: a language-pair-scoped store
// keyed on normalized source text.
type TMStore interface {
	// AddEntry upserts one source->target pair. If a row with the same key
	// exists, target text is updated when different and usage is bumped;
	// otherwise a fresh row is inserted with usage count 1. The upsert is
	// atomic - concurrent adds for the same key never duplicate rows.
	AddEntry(ctx context.Context, key domain.TMKey, targetText string) (*domain.TMEntry, domain.AddOutcome, error)

	// FindMatches returns entries ranked by similarity score, exact
	// matches (score 100) first. Without fuzzy matching enabled an absent
	// exact match yields an empty list. Lookups are always scoped by
	// language pair; project-scoped lookups also see globally scoped
	// entries, unscoped lookups only see global ones.
	FindMatches(ctx context.Context, query domain.TMQuery) ([]domain.TMMatch, error)

	// BumpUsage increments an entry's usage count and last-used time.
	// Called asynchronously after an exact match is served.
	BumpUsage(ctx context.Context, entryID string) error

	// Get retrieves an entry by ID.
	Get(ctx context.Context, id string) (*domain.TMEntry, error)

	// Delete removes an entry.
	Delete(ctx context.Context, id string) error
}
