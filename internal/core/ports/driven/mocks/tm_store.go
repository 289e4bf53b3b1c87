package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// MockTMStore is a mock implementation of TMStore for testing
type MockTMStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.TMEntry

	// BumpCalls records every usage bump in order, both exact lookup hits
	// and direct BumpUsage calls
	BumpCalls []string
}

// NewMockTMStore creates a new MockTMStore
func NewMockTMStore() *MockTMStore {
	return &MockTMStore{
		entries: make(map[string]*domain.TMEntry),
	}
}

func (m *MockTMStore) AddEntry(ctx context.Context, key domain.TMKey, targetText string) (*domain.TMEntry, domain.AddOutcome, error) {
	if err := key.Validate(); err != nil {
		return nil, "", err
	}
	if targetText == "" {
		return nil, "", domain.ErrInvalidInput
	}
	key = key.Normalized()

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, e := range m.entries {
		if sameKey(e.Key, key) {
			e.TargetText = targetText
			e.UsageCount++
			e.LastUsedAt = now
			cp := *e
			return &cp, domain.AddOutcomeUpdated, nil
		}
	}
	entry := &domain.TMEntry{
		ID:         domain.GenerateID(),
		Key:        key,
		TargetText: targetText,
		UsageCount: 1,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	m.entries[entry.ID] = entry
	cp := *entry
	return &cp, domain.AddOutcomeAdded, nil
}

func (m *MockTMStore) FindMatches(ctx context.Context, query domain.TMQuery) ([]domain.TMMatch, error) {
	source := domain.NormalizeSource(query.SourceText)
	minScore := query.MinScore
	if minScore == 0 {
		minScore = domain.DefaultMinFuzzyScore
	}
	limit := query.Limit
	if limit == 0 {
		limit = domain.DefaultMatchLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []domain.TMMatch
	for _, e := range m.entries {
		if e.Key.SourceLanguage != query.SourceLanguage || e.Key.TargetLanguage != query.TargetLanguage {
			continue
		}
		if !scopeVisible(e.Key.ProjectID, query.ProjectID) {
			continue
		}
		score := 100
		if e.Key.SourceText != source {
			if !query.Fuzzy {
				continue
			}
			score = domain.SimilarityScore(e.Key.SourceText, source)
			if score < minScore || score == 100 {
				continue
			}
		}
		cp := *e
		matches = append(matches, domain.TMMatch{Entry: &cp, Score: score})
		// Returned exact matches count as usage. The real store bumps
		// asynchronously; the mock does it inline for determinism.
		if score == 100 {
			e.UsageCount++
			e.LastUsedAt = time.Now()
			m.BumpCalls = append(m.BumpCalls, e.ID)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MockTMStore) BumpUsage(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return domain.ErrNotFound
	}
	e.UsageCount++
	e.LastUsedAt = time.Now()
	m.BumpCalls = append(m.BumpCalls, entryID)
	return nil
}

// Bumped returns a copy of the recorded BumpUsage calls, safe to read while
// asynchronous bumps are still in flight.
func (m *MockTMStore) Bumped() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.BumpCalls...)
}

func (m *MockTMStore) Get(ctx context.Context, id string) (*domain.TMEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockTMStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func sameKey(a, b domain.TMKey) bool {
	if a.SourceLanguage != b.SourceLanguage || a.TargetLanguage != b.TargetLanguage || a.SourceText != b.SourceText {
		return false
	}
	if (a.ProjectID == nil) != (b.ProjectID == nil) {
		return false
	}
	return a.ProjectID == nil || *a.ProjectID == *b.ProjectID
}

// scopeVisible applies TM scoping: project lookups see their own scope plus
// global entries, unscoped lookups see global entries only.
func scopeVisible(entryScope, queryScope *string) bool {
	if entryScope == nil {
		return true
	}
	return queryScope != nil && *entryScope == *queryScope
}
