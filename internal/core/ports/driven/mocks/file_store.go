package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
)

// MockFileStore is a mock implementation of FileStore for testing
type MockFileStore struct {
	mu    sync.RWMutex
	files map[string]*domain.File

	// statusUpdates counts UpdateStatus calls
	statusUpdates int
}

// NewMockFileStore creates a new MockFileStore
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{files: make(map[string]*domain.File)}
}

func (m *MockFileStore) Save(ctx context.Context, file *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *file
	m.files[file.ID] = &cp
	return nil
}

func (m *MockFileStore) Get(ctx context.Context, id string) (*domain.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MockFileStore) ListByProject(ctx context.Context, projectID string) ([]*domain.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []*domain.File
	for _, f := range m.files {
		if f.ProjectID == projectID {
			cp := *f
			files = append(files, &cp)
		}
	}
	return files, nil
}

func (m *MockFileStore) UpdateStatus(ctx context.Context, fileID string, status domain.FileStatus, stats domain.FileStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return domain.ErrNotFound
	}
	f.Status = status
	f.Stats = stats
	f.UpdatedAt = time.Now()
	m.statusUpdates++
	return nil
}

// StatusUpdates reports how many times UpdateStatus was called.
func (m *MockFileStore) StatusUpdates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusUpdates
}

func (m *MockFileStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.files, id)
	return nil
}

// MockAIConfigStore is a mock implementation of AIConfigStore for testing
type MockAIConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*domain.AIConfig
}

// NewMockAIConfigStore creates a new MockAIConfigStore
func NewMockAIConfigStore() *MockAIConfigStore {
	return &MockAIConfigStore{configs: make(map[string]*domain.AIConfig)}
}

func (m *MockAIConfigStore) Save(ctx context.Context, cfg *domain.AIConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *MockAIConfigStore) Get(ctx context.Context, id string) (*domain.AIConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (m *MockAIConfigStore) List(ctx context.Context) ([]*domain.AIConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var configs []*domain.AIConfig
	for _, cfg := range m.configs {
		cp := *cfg
		configs = append(configs, &cp)
	}
	return configs, nil
}

func (m *MockAIConfigStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.configs, id)
	return nil
}

// MockPromptTemplateStore is a mock implementation of PromptTemplateStore
// for testing
type MockPromptTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*domain.PromptTemplate
}

// NewMockPromptTemplateStore creates a new MockPromptTemplateStore
func NewMockPromptTemplateStore() *MockPromptTemplateStore {
	return &MockPromptTemplateStore{templates: make(map[string]*domain.PromptTemplate)}
}

// Add seeds a template.
func (m *MockPromptTemplateStore) Add(tpl *domain.PromptTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tpl
	m.templates[tpl.ID] = &cp
}

func (m *MockPromptTemplateStore) Get(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}
