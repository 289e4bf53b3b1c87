package driven

import (
	"context"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// UnitStore persists translation units.
type UnitStore interface {
	// ReplaceFileUnits atomically replaces every unit belonging to a file
	// (delete-then-bulk-insert in one transaction). Re-extraction is a
	// full replace, never an incremental update, so no caller observes a
	// half-populated unit set.
	ReplaceFileUnits(ctx context.Context, fileID string, units []*domain.Unit) error

	// Get retrieves a unit by ID.
	Get(ctx context.Context, id string) (*domain.Unit, error)

	// GetByFileIndex retrieves a unit by its (fileID, index) identity.
	GetByFileIndex(ctx context.Context, fileID string, index int) (*domain.Unit, error)

	// Update persists a mutated unit. The store compares the unit's
	// revision against the stored row and returns domain.ErrConflict if
	// another writer got there first; on success the revision is bumped.
	Update(ctx context.Context, unit *domain.Unit) error

	// ListByFile returns a file's units ordered by index.
	ListByFile(ctx context.Context, fileID string) ([]*domain.Unit, error)

	// ListByStatus returns a file's units currently in the given status.
	ListByStatus(ctx context.Context, fileID string, status domain.UnitStatus) ([]*domain.Unit, error)

	// DeleteByFile removes every unit belonging to a file.
	DeleteByFile(ctx context.Context, fileID string) error
}
