package domain

import "time"

// AIProvider identifies an AI capability backend.
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderMock   AIProvider = "mock"
)

// AIConfig selects and parameterizes an AI capability. The API key is
// encrypted at rest by the config store.
type AIConfig struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Provider    AIProvider `json:"provider"`
	Model       string     `json:"model"`
	APIKey      string     `json:"-"`
	BaseURL     string     `json:"base_url,omitempty"`
	Temperature float32    `json:"temperature,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsConfigured reports whether the config is usable.
func (c *AIConfig) IsConfigured() bool {
	if c == nil || c.Model == "" {
		return false
	}
	if c.Provider == AIProviderOpenAI && c.APIKey == "" {
		return false
	}
	return true
}

// PromptTemplate holds the instruction pair used to build capability calls.
// Template CRUD lives outside this core; the pipeline only reads them.
type PromptTemplate struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Terminology is a per-domain glossary applied to translation instructions.
type Terminology map[string]string
