package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TMStore = (*TMStore)(nil)

// TMStore implements driven.TMStore using PostgreSQL. The unique key on
// (pair, source text, scope) makes the upsert race-free; fuzzy scoring
// happens in Go over the pair's candidate rows.
type TMStore struct {
	db     *DB
	logger *slog.Logger
}

// NewTMStore creates a new TMStore
func NewTMStore(db *DB) *TMStore {
	return &TMStore{db: db, logger: slog.Default()}
}

// AddEntry upserts one source->target pair. xmax = 0 distinguishes a fresh
// insert from a conflict-update on the same statement.
func (s *TMStore) AddEntry(ctx context.Context, key domain.TMKey, targetText string) (*domain.TMEntry, domain.AddOutcome, error) {
	if err := key.Validate(); err != nil {
		return nil, "", err
	}
	if targetText == "" {
		return nil, "", domain.ErrInvalidInput
	}
	key = key.Normalized()

	now := time.Now()
	query := `
		INSERT INTO tm_entries (id, source_language, target_language, source_text, project_id, target_text, usage_count, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
		ON CONFLICT (source_language, target_language, source_text, project_id) DO UPDATE SET
			target_text = EXCLUDED.target_text,
			usage_count = tm_entries.usage_count + 1,
			last_used_at = EXCLUDED.last_used_at
		RETURNING id, usage_count, created_at, (xmax = 0) AS inserted
	`
	var (
		id        string
		usage     int
		createdAt time.Time
		inserted  bool
	)
	err := s.db.QueryRowContext(ctx, query,
		domain.GenerateID(),
		key.SourceLanguage,
		key.TargetLanguage,
		key.SourceText,
		scopeColumn(key.ProjectID),
		targetText,
		now,
	).Scan(&id, &usage, &createdAt, &inserted)
	if err != nil {
		return nil, "", err
	}

	entry := &domain.TMEntry{
		ID:         id,
		Key:        key,
		TargetText: targetText,
		UsageCount: usage,
		CreatedAt:  createdAt,
		LastUsedAt: now,
	}
	if inserted {
		return entry, domain.AddOutcomeAdded, nil
	}
	return entry, domain.AddOutcomeUpdated, nil
}

// FindMatches returns entries ranked by similarity, exact matches first
func (s *TMStore) FindMatches(ctx context.Context, query domain.TMQuery) ([]domain.TMMatch, error) {
	source := domain.NormalizeSource(query.SourceText)
	if source == "" {
		return nil, domain.ErrInvalidInput
	}
	minScore := query.MinScore
	if minScore == 0 {
		minScore = domain.DefaultMinFuzzyScore
	}
	limit := query.Limit
	if limit == 0 {
		limit = domain.DefaultMatchLimit
	}

	// Exact hit is a single indexed lookup. Scoped lookups also see the
	// global scope; the scoped row wins when both exist.
	exact, err := s.exactMatches(ctx, source, query)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.TMMatch, 0, limit)
	for _, e := range exact {
		matches = append(matches, domain.TMMatch{Entry: e, Score: 100})
		// Usage accounting on an exact hit never blocks the lookup.
		go s.bumpUsageAsync(e.ID)
	}
	if !query.Fuzzy {
		if len(matches) > limit {
			matches = matches[:limit]
		}
		return matches, nil
	}

	fuzzy, err := s.fuzzyMatches(ctx, source, query, minScore)
	if err != nil {
		return nil, err
	}
	matches = append(matches, fuzzy...)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *TMStore) exactMatches(ctx context.Context, source string, query domain.TMQuery) ([]*domain.TMEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_language, target_language, source_text, project_id, target_text, usage_count, created_at, last_used_at
		FROM tm_entries
		WHERE source_language = $1 AND target_language = $2 AND source_text = $3 AND project_id = ANY($4)
		ORDER BY project_id DESC
	`, query.SourceLanguage, query.TargetLanguage, source, scopeFilter(query.ProjectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTMEntries(rows)
}

func (s *TMStore) fuzzyMatches(ctx context.Context, source string, query domain.TMQuery, minScore int) ([]domain.TMMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_language, target_language, source_text, project_id, target_text, usage_count, created_at, last_used_at
		FROM tm_entries
		WHERE source_language = $1 AND target_language = $2 AND source_text <> $3 AND project_id = ANY($4)
	`, query.SourceLanguage, query.TargetLanguage, source, scopeFilter(query.ProjectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := collectTMEntries(rows)
	if err != nil {
		return nil, err
	}
	var matches []domain.TMMatch
	for _, e := range entries {
		score := domain.SimilarityScore(e.Key.SourceText, source)
		if score < minScore || score == 100 {
			continue
		}
		matches = append(matches, domain.TMMatch{Entry: e, Score: score})
	}
	return matches, nil
}

// bumpUsageAsync records usage for a returned exact match off the lookup
// path. Failures are logged, never surfaced.
func (s *TMStore) bumpUsageAsync(entryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.BumpUsage(ctx, entryID); err != nil {
		s.logger.Warn("tm usage bump failed", "entry_id", entryID, "error", err)
	}
}

// BumpUsage increments an entry's usage count and last-used time
func (s *TMStore) BumpUsage(ctx context.Context, entryID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tm_entries SET usage_count = usage_count + 1, last_used_at = $1 WHERE id = $2`,
		time.Now(), entryID)
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

// Get retrieves an entry by ID
func (s *TMStore) Get(ctx context.Context, id string) (*domain.TMEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_language, target_language, source_text, project_id, target_text, usage_count, created_at, last_used_at
		FROM tm_entries WHERE id = $1
	`, id)
	e, err := scanTMEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

// Delete removes an entry
func (s *TMStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tm_entries WHERE id = $1`, id)
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

// scopeColumn maps a nil project scope onto the empty-string global scope.
func scopeColumn(projectID *string) string {
	if projectID == nil {
		return ""
	}
	return *projectID
}

// scopeFilter lists the scopes a lookup may see: always global, plus the
// lookup's own project when scoped.
func scopeFilter(projectID *string) interface{} {
	scopes := []string{""}
	if projectID != nil && *projectID != "" {
		scopes = append(scopes, *projectID)
	}
	return pq.Array(scopes)
}

func scanTMEntry(row rowScanner) (*domain.TMEntry, error) {
	var (
		e       domain.TMEntry
		project string
	)
	err := row.Scan(
		&e.ID,
		&e.Key.SourceLanguage,
		&e.Key.TargetLanguage,
		&e.Key.SourceText,
		&project,
		&e.TargetText,
		&e.UsageCount,
		&e.CreatedAt,
		&e.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	if project != "" {
		e.Key.ProjectID = &project
	}
	return &e, nil
}

func collectTMEntries(rows *sql.Rows) ([]*domain.TMEntry, error) {
	var entries []*domain.TMEntry
	for rows.Next() {
		e, err := scanTMEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
