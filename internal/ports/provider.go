package ports

import "context"

type TranslateRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
}

type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

type TranslateResult struct {
	Text     string
	Model    string
	Provider string
	Tokens   TokenUsage
	Raw      string
}

type ModelInfo struct {
	Name          string
	Description   string
	ContextTokens int
}

// Provider is a single AI backend. Implementations are stateless per call;
// credentials are bound at construction from the stored config.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) (TranslateResult, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Test(ctx context.Context) error
}
