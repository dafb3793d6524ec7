package domain

import "time"

// Supported provider kinds. Matching against ProviderConfig.ProviderName is
// case-insensitive; anything outside this set is a configuration error.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// ProviderConfig describes one AI backend: credentials plus capabilities.
// Records are managed elsewhere; the core only reads them.
type ProviderConfig struct {
	ID           int64     `json:"id"`
	ProviderName string    `json:"provider_name"`
	Name         string    `json:"name"`
	APIKey       string    `json:"-"`
	Models       []string  `json:"models"`
	BaseURL      string    `json:"base_url"`
	Temperature  float64   `json:"temperature"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultModel returns the first configured model, or "" when none exist.
func (p *ProviderConfig) DefaultModel() string {
	if len(p.Models) == 0 {
		return ""
	}
	return p.Models[0]
}
