package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UnitStore = (*UnitStore)(nil)

// UnitStore implements driven.UnitStore using PostgreSQL
type UnitStore struct {
	db *DB
}

// NewUnitStore creates a new UnitStore
func NewUnitStore(db *DB) *UnitStore {
	return &UnitStore{db: db}
}

const unitColumns = `id, file_id, idx, external_id, source_text, translation, review, final_text, raw_target,
	source_length, translated_length, status, error, issues, translation_meta, review_meta,
	format_meta, review_skipped, quality_score, warnings, revision, created_at, updated_at, completed_at`

// ReplaceFileUnits atomically swaps a file's unit set in one transaction
func (s *UnitStore) ReplaceFileUnits(ctx context.Context, fileID string, units []*domain.Unit) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE file_id = $1`, fileID); err != nil {
			return err
		}
		if len(units) == 0 {
			return nil
		}

		query := `
			INSERT INTO units (` + unitColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		`
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, u := range units {
			args, err := unitArgs(u)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a unit by ID
func (s *UnitStore) Get(ctx context.Context, id string) (*domain.Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id)
	return scanUnit(row)
}

// GetByFileIndex retrieves a unit by its position within a file
func (s *UnitStore) GetByFileIndex(ctx context.Context, fileID string, index int) (*domain.Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE file_id = $1 AND idx = $2`, fileID, index)
	return scanUnit(row)
}

// Update persists a mutated unit, compare-and-swapping on revision
func (s *UnitStore) Update(ctx context.Context, unit *domain.Unit) error {
	issuesJSON, err := json.Marshal(unit.Issues)
	if err != nil {
		return err
	}
	tmetaJSON, err := nullableJSON(unit.TranslationMeta)
	if err != nil {
		return err
	}
	rmetaJSON, err := nullableJSON(unit.ReviewMeta)
	if err != nil {
		return err
	}
	formatJSON, err := json.Marshal(unit.FormatMeta)
	if err != nil {
		return err
	}
	warningsJSON, err := json.Marshal(unit.Warnings)
	if err != nil {
		return err
	}

	query := `
		UPDATE units SET
			translation = $1,
			review = $2,
			final_text = $3,
			raw_target = $4,
			translated_length = $5,
			status = $6,
			error = $7,
			issues = $8,
			translation_meta = $9,
			review_meta = $10,
			format_meta = $11,
			review_skipped = $12,
			quality_score = $13,
			warnings = $14,
			revision = revision + 1,
			updated_at = $15,
			completed_at = $16
		WHERE id = $17 AND revision = $18
	`
	res, err := s.db.ExecContext(ctx, query,
		unit.Translation,
		unit.Review,
		unit.FinalText,
		unit.RawTarget,
		unit.TranslatedLength,
		unit.Status,
		unit.Error,
		issuesJSON,
		tmetaJSON,
		rmetaJSON,
		formatJSON,
		unit.ReviewSkipped,
		NullInt(unit.QualityScore),
		warningsJSON,
		unit.UpdatedAt,
		NullTime(unit.CompletedAt),
		unit.ID,
		unit.Revision,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Row missing or revision mismatch; distinguish the two.
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM units WHERE id = $1)`, unit.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	unit.Revision++
	return nil
}

// ListByFile returns a file's units ordered by index
func (s *UnitStore) ListByFile(ctx context.Context, fileID string) ([]*domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+unitColumns+` FROM units WHERE file_id = $1 ORDER BY idx`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUnits(rows)
}

// ListByStatus returns a file's units currently in the given status
func (s *UnitStore) ListByStatus(ctx context.Context, fileID string, status domain.UnitStatus) ([]*domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE file_id = $1 AND status = $2 ORDER BY idx`, fileID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUnits(rows)
}

// DeleteByFile removes every unit belonging to a file
func (s *UnitStore) DeleteByFile(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE file_id = $1`, fileID)
	return err
}

func unitArgs(u *domain.Unit) ([]any, error) {
	issuesJSON, err := json.Marshal(u.Issues)
	if err != nil {
		return nil, err
	}
	tmetaJSON, err := nullableJSON(u.TranslationMeta)
	if err != nil {
		return nil, err
	}
	rmetaJSON, err := nullableJSON(u.ReviewMeta)
	if err != nil {
		return nil, err
	}
	formatJSON, err := json.Marshal(u.FormatMeta)
	if err != nil {
		return nil, err
	}
	warningsJSON, err := json.Marshal(u.Warnings)
	if err != nil {
		return nil, err
	}
	return []any{
		u.ID, u.FileID, u.Index, u.ExternalID, u.SourceText, u.Translation, u.Review, u.FinalText, u.RawTarget,
		u.SourceLength, u.TranslatedLength, u.Status, u.Error, issuesJSON, tmetaJSON, rmetaJSON,
		formatJSON, u.ReviewSkipped, NullInt(u.QualityScore), warningsJSON, u.Revision,
		u.CreatedAt, u.UpdatedAt, NullTime(u.CompletedAt),
	}, nil
}

func scanUnit(row rowScanner) (*domain.Unit, error) {
	var (
		u            domain.Unit
		issuesJSON   []byte
		tmetaJSON    sql.NullString
		rmetaJSON    sql.NullString
		formatJSON   []byte
		warningsJSON []byte
		quality      sql.NullInt64
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.FileID, &u.Index, &u.ExternalID, &u.SourceText, &u.Translation, &u.Review, &u.FinalText, &u.RawTarget,
		&u.SourceLength, &u.TranslatedLength, &u.Status, &u.Error, &issuesJSON, &tmetaJSON, &rmetaJSON,
		&formatJSON, &u.ReviewSkipped, &quality, &warningsJSON, &u.Revision,
		&u.CreatedAt, &u.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(issuesJSON, &u.Issues); err != nil {
		return nil, err
	}
	if tmetaJSON.Valid {
		u.TranslationMeta = &domain.TranslationMeta{}
		if err := json.Unmarshal([]byte(tmetaJSON.String), u.TranslationMeta); err != nil {
			return nil, err
		}
	}
	if rmetaJSON.Valid {
		u.ReviewMeta = &domain.ReviewMeta{}
		if err := json.Unmarshal([]byte(rmetaJSON.String), u.ReviewMeta); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(formatJSON, &u.FormatMeta); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(warningsJSON, &u.Warnings); err != nil {
		return nil, err
	}
	if quality.Valid {
		q := int(quality.Int64)
		u.QualityScore = &q
	}
	u.CompletedAt = TimePtr(completedAt)
	return &u, nil
}

func collectUnits(rows *sql.Rows) ([]*domain.Unit, error) {
	var units []*domain.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func nullableJSON(v any) (sql.NullString, error) {
	switch m := v.(type) {
	case *domain.TranslationMeta:
		if m == nil {
			return sql.NullString{}, nil
		}
	case *domain.ReviewMeta:
		if m == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// NullInt converts an int pointer to sql.NullInt64
func NullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
