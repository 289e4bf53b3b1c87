package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// MockUnitStore is a mock implementation of UnitStore for testing
type MockUnitStore struct {
	mu     sync.RWMutex
	units  map[string]*domain.Unit
	byFile map[string][]*domain.Unit

	// UpdateErr, when set, is returned by every Update call
	UpdateErr error
}

// NewMockUnitStore creates a new MockUnitStore
func NewMockUnitStore() *MockUnitStore {
	return &MockUnitStore{
		units:  make(map[string]*domain.Unit),
		byFile: make(map[string][]*domain.Unit),
	}
}

func (m *MockUnitStore) ReplaceFileUnits(ctx context.Context, fileID string, units []*domain.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byFile[fileID] {
		delete(m.units, u.ID)
	}
	m.byFile[fileID] = nil
	for _, u := range units {
		m.units[u.ID] = u
		m.byFile[fileID] = append(m.byFile[fileID], u)
	}
	return nil
}

func (m *MockUnitStore) Get(ctx context.Context, id string) (*domain.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUnitStore) GetByFileIndex(ctx context.Context, fileID string, index int) (*domain.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byFile[fileID] {
		if u.Index == index {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUnitStore) Update(ctx context.Context, unit *domain.Unit) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.units[unit.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Revision != unit.Revision {
		return domain.ErrConflict
	}
	unit.Revision++
	unit.UpdatedAt = time.Now()
	cp := *unit
	m.units[unit.ID] = &cp
	for i, u := range m.byFile[cp.FileID] {
		if u.ID == cp.ID {
			m.byFile[cp.FileID][i] = &cp
			break
		}
	}
	return nil
}

func (m *MockUnitStore) ListByFile(ctx context.Context, fileID string) ([]*domain.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	units := make([]*domain.Unit, 0, len(m.byFile[fileID]))
	for _, u := range m.byFile[fileID] {
		cp := *u
		units = append(units, &cp)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Index < units[j].Index })
	return units, nil
}

func (m *MockUnitStore) ListByStatus(ctx context.Context, fileID string, status domain.UnitStatus) ([]*domain.Unit, error) {
	all, err := m.ListByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	var units []*domain.Unit
	for _, u := range all {
		if u.Status == status {
			units = append(units, u)
		}
	}
	return units, nil
}

func (m *MockUnitStore) DeleteByFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byFile[fileID] {
		delete(m.units, u.ID)
	}
	delete(m.byFile, fileID)
	return nil
}
