package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/Jjjmaes/AIT-sub000/internal/adapters/llm/httpclient"
	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
)

// Factory resolves a provider config record to a concrete adapter. The
// provider name is matched case-insensitively against a closed set; an
// unknown name fails fast and is never retried.
type Factory struct {
	Timeout time.Duration
}

func New(timeout time.Duration) *Factory { return &Factory{Timeout: timeout} }

func (f *Factory) FromConfig(cfg *domain.ProviderConfig) (ports.Provider, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.ProviderName))
	switch kind {
	case domain.ProviderOpenAI, domain.ProviderOpenRouter, domain.ProviderOllama:
		return httpclient.New(kind, cfg.APIKey, cfg.BaseURL, f.Timeout), nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.ProviderName, domain.ErrUnsupportedProvider)
	}
}
