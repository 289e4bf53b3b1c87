package domain

import (
	"strings"
	"time"
)

// TMKey identifies one remembered source->target pair. A nil ProjectID means
// the entry is globally visible; scoped entries are only returned to lookups
// carrying the same scope.
type TMKey struct {
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	SourceText     string  `json:"source_text"`
	ProjectID      *string `json:"project_id,omitempty"`
}

// NormalizeSource canonicalizes source text for TM keying: surrounding
// whitespace is dropped and internal runs collapse to single spaces, so
// formatting noise does not split otherwise identical segments.
func NormalizeSource(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Normalized returns a copy of the key with canonical source text.
func (k TMKey) Normalized() TMKey {
	k.SourceText = NormalizeSource(k.SourceText)
	return k
}

// Validate checks the key carries everything a lookup needs.
func (k TMKey) Validate() error {
	if k.SourceLanguage == "" || k.TargetLanguage == "" || strings.TrimSpace(k.SourceText) == "" {
		return ErrInvalidInput
	}
	return nil
}

// TMEntry is one stored translation-memory row.
type TMEntry struct {
	ID         string    `json:"id"`
	Key        TMKey     `json:"key"`
	TargetText string    `json:"target_text"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// AddOutcome reports whether AddEntry inserted a new row or updated an
// existing one.
type AddOutcome string

const (
	AddOutcomeAdded   AddOutcome = "added"
	AddOutcomeUpdated AddOutcome = "updated"
)

// TMMatch pairs a TM entry with its similarity score (0-100, 100 = exact).
type TMMatch struct {
	Entry *TMEntry `json:"entry"`
	Score int      `json:"score"`
}

// TMQuery describes a FindMatches lookup. Fuzzy matching is off unless
// enabled; MinScore gates fuzzy candidates (exact matches always pass).
type TMQuery struct {
	SourceText     string
	SourceLanguage string
	TargetLanguage string
	ProjectID      *string
	Fuzzy          bool
	MinScore       int // 0 means DefaultMinFuzzyScore
	Limit          int // 0 means DefaultMatchLimit
}

const (
	// DefaultMinFuzzyScore is the lowest similarity returned by fuzzy lookups.
	DefaultMinFuzzyScore = 60
	// DefaultMatchLimit caps the number of matches returned per lookup.
	DefaultMatchLimit = 5
)
