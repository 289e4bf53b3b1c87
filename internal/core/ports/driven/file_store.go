package driven

import (
	"context"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// FileStore persists bitext file aggregates.
type FileStore interface {
	// Save creates or updates a file.
	Save(ctx context.Context, file *domain.File) error

	// Get retrieves a file by ID.
	Get(ctx context.Context, id string) (*domain.File, error)

	// ListByProject returns a project's files.
	ListByProject(ctx context.Context, projectID string) ([]*domain.File, error)

	// UpdateStatus writes a recomputed aggregate status and stats.
	UpdateStatus(ctx context.Context, fileID string, status domain.FileStatus, stats domain.FileStats) error

	// Delete removes a file (its units go with it).
	Delete(ctx context.Context, id string) error
}

// AIConfigStore persists AI capability configurations. API keys are
// encrypted at rest.
type AIConfigStore interface {
	Save(ctx context.Context, cfg *domain.AIConfig) error
	Get(ctx context.Context, id string) (*domain.AIConfig, error)
	List(ctx context.Context) ([]*domain.AIConfig, error)
	Delete(ctx context.Context, id string) error
}

// PromptTemplateStore reads instruction templates. Template CRUD lives
// outside this core.
type PromptTemplateStore interface {
	Get(ctx context.Context, id string) (*domain.PromptTemplate, error)
}
