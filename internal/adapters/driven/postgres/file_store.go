package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileStore = (*FileStore)(nil)

// FileStore implements driven.FileStore using PostgreSQL
type FileStore struct {
	db *DB
}

// NewFileStore creates a new FileStore
func NewFileStore(db *DB) *FileStore {
	return &FileStore{db: db}
}

// Save creates or updates a file
func (s *FileStore) Save(ctx context.Context, file *domain.File) error {
	statsJSON, err := json.Marshal(file.Stats)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO files (id, project_id, name, original_name, path, format, source_language, target_language, status, stats, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			original_name = EXCLUDED.original_name,
			path = EXCLUDED.path,
			format = EXCLUDED.format,
			source_language = EXCLUDED.source_language,
			target_language = EXCLUDED.target_language,
			status = EXCLUDED.status,
			stats = EXCLUDED.stats,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		file.ID,
		file.ProjectID,
		file.Name,
		file.OriginalName,
		file.Path,
		file.Format,
		file.SourceLanguage,
		file.TargetLanguage,
		file.Status,
		statsJSON,
		file.Error,
		file.CreatedAt,
		file.UpdatedAt,
	)
	return err
}

// Get retrieves a file by ID
func (s *FileStore) Get(ctx context.Context, id string) (*domain.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, original_name, path, format, source_language, target_language, status, stats, error, created_at, updated_at
		FROM files WHERE id = $1
	`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return f, err
}

// ListByProject returns a project's files
func (s *FileStore) ListByProject(ctx context.Context, projectID string) ([]*domain.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, original_name, path, format, source_language, target_language, status, stats, error, created_at, updated_at
		FROM files WHERE project_id = $1 ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateStatus writes a recomputed aggregate status and stats
func (s *FileStore) UpdateStatus(ctx context.Context, fileID string, status domain.FileStatus, stats domain.FileStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET status = $1, stats = $2, updated_at = $3 WHERE id = $4`,
		status, statsJSON, time.Now(), fileID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a file; its units go with it via the FK cascade
func (s *FileStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanFile(row rowScanner) (*domain.File, error) {
	var (
		f         domain.File
		statsJSON []byte
	)
	err := row.Scan(
		&f.ID, &f.ProjectID, &f.Name, &f.OriginalName, &f.Path, &f.Format,
		&f.SourceLanguage, &f.TargetLanguage, &f.Status, &statsJSON, &f.Error,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(statsJSON, &f.Stats); err != nil {
		return nil, err
	}
	return &f, nil
}

// Verify interface compliance
var _ driven.AIConfigStore = (*AIConfigStore)(nil)

// AIConfigStore implements driven.AIConfigStore using PostgreSQL.
// API keys are encrypted at rest with the store's SecretEncryptor.
type AIConfigStore struct {
	db  *DB
	enc *SecretEncryptor
}

// NewAIConfigStore creates a new AIConfigStore
func NewAIConfigStore(db *DB, enc *SecretEncryptor) *AIConfigStore {
	return &AIConfigStore{db: db, enc: enc}
}

// Save creates or updates an AI configuration
func (s *AIConfigStore) Save(ctx context.Context, cfg *domain.AIConfig) error {
	keyEnc, err := s.enc.EncryptString(cfg.APIKey)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ai_configs (id, name, provider, model, api_key_enc, base_url, temperature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			api_key_enc = EXCLUDED.api_key_enc,
			base_url = EXCLUDED.base_url,
			temperature = EXCLUDED.temperature,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, cfg.Provider, cfg.Model, keyEnc, cfg.BaseURL, cfg.Temperature,
		cfg.CreatedAt, cfg.UpdatedAt,
	)
	return err
}

// Get retrieves an AI configuration by ID
func (s *AIConfigStore) Get(ctx context.Context, id string) (*domain.AIConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, api_key_enc, base_url, temperature, created_at, updated_at
		FROM ai_configs WHERE id = $1
	`, id)
	cfg, err := s.scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return cfg, err
}

// List returns every AI configuration
func (s *AIConfigStore) List(ctx context.Context) ([]*domain.AIConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, provider, model, api_key_enc, base_url, temperature, created_at, updated_at
		FROM ai_configs ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.AIConfig
	for rows.Next() {
		cfg, err := s.scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Delete removes an AI configuration
func (s *AIConfigStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_configs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AIConfigStore) scanConfig(row rowScanner) (*domain.AIConfig, error) {
	var (
		cfg    domain.AIConfig
		keyEnc string
	)
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Provider, &cfg.Model, &keyEnc, &cfg.BaseURL, &cfg.Temperature,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.APIKey, err = s.enc.DecryptString(keyEnc)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Verify interface compliance
var _ driven.PromptTemplateStore = (*PromptTemplateStore)(nil)

// PromptTemplateStore implements driven.PromptTemplateStore using PostgreSQL
type PromptTemplateStore struct {
	db *DB
}

// NewPromptTemplateStore creates a new PromptTemplateStore
func NewPromptTemplateStore(db *DB) *PromptTemplateStore {
	return &PromptTemplateStore{db: db}
}

// Get retrieves a prompt template by ID
func (s *PromptTemplateStore) Get(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	var tpl domain.PromptTemplate
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, system, user_part FROM prompt_templates WHERE id = $1`, id,
	).Scan(&tpl.ID, &tpl.Name, &tpl.System, &tpl.User)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}
