package httpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
)

// Client speaks the chat-completion dialects of the supported backends.
// One instance is bound to one provider config; calls are stateless.
type Client struct {
	ProviderType string
	APIKey       string
	BaseURL      string
	http         *resty.Client
}

func New(providerType, apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := resty.New().SetTimeout(timeout)
	return &Client{ProviderType: strings.ToLower(providerType), APIKey: apiKey, BaseURL: baseURL, http: c}
}

func (c *Client) Translate(ctx context.Context, req ports.TranslateRequest) (ports.TranslateResult, error) {
	switch c.ProviderType {
	case domain.ProviderOpenAI, domain.ProviderOpenRouter:
		return c.translateChatCompletions(ctx, req)
	case domain.ProviderOllama:
		return c.translateOllama(ctx, req)
	default:
		return ports.TranslateResult{}, fmt.Errorf("%s: %w", c.ProviderType, domain.ErrUnsupportedProvider)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) translateChatCompletions(ctx context.Context, p ports.TranslateRequest) (ports.TranslateResult, error) {
	url := c.chatURL()
	msgs := make([]chatMessage, 0, 2)
	if p.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.UserPrompt})
	body := map[string]any{
		"model":       p.Model,
		"messages":    msgs,
		"temperature": p.Temperature,
	}
	var resp chatResponse
	r := c.http.R().SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).SetResult(&resp)
	rr, err := r.Post(url)
	if err != nil {
		return ports.TranslateResult{}, &domain.ProviderError{Provider: c.ProviderType, Msg: "request failed", Err: err}
	}
	if rr.IsError() {
		return ports.TranslateResult{}, &domain.ProviderError{
			Provider: c.ProviderType,
			Msg:      fmt.Sprintf("translate: %s; body: %s", rr.Status(), abbreviate(rr.String(), 500)),
		}
	}
	if len(resp.Choices) == 0 {
		return ports.TranslateResult{}, &domain.ProviderError{Provider: c.ProviderType, Msg: "no choices returned"}
	}
	raw := resp.Choices[0].Message.Content
	return ports.TranslateResult{
		Text:     cleanAnswer(raw),
		Model:    p.Model,
		Provider: c.ProviderType,
		Tokens: ports.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
		Raw: raw,
	}, nil
}

func (c *Client) translateOllama(ctx context.Context, p ports.TranslateRequest) (ports.TranslateResult, error) {
	base := c.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	url := strings.TrimRight(base, "/") + "/api/chat"
	body := map[string]any{
		"model": p.Model,
		"messages": []chatMessage{
			{Role: "system", Content: p.SystemPrompt},
			{Role: "user", Content: p.UserPrompt},
		},
		"stream":  false,
		"options": map[string]any{"temperature": p.Temperature},
	}
	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	r := c.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(body).SetResult(&resp)
	rr, err := r.Post(url)
	if err != nil {
		return ports.TranslateResult{}, &domain.ProviderError{Provider: c.ProviderType, Msg: "request failed", Err: err}
	}
	if rr.IsError() {
		return ports.TranslateResult{}, &domain.ProviderError{
			Provider: c.ProviderType,
			Msg:      fmt.Sprintf("translate: %s; body: %s", rr.Status(), abbreviate(rr.String(), 500)),
		}
	}
	raw := resp.Message.Content
	return ports.TranslateResult{
		Text:     cleanAnswer(raw),
		Model:    p.Model,
		Provider: c.ProviderType,
		Tokens: ports.TokenUsage{
			Prompt:     resp.PromptEvalCount,
			Completion: resp.EvalCount,
			Total:      resp.PromptEvalCount + resp.EvalCount,
		},
		Raw: raw,
	}, nil
}

func (c *Client) ListModels(ctx context.Context) ([]ports.ModelInfo, error) {
	switch c.ProviderType {
	case domain.ProviderOllama:
		base := c.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		url := strings.TrimRight(base, "/") + "/api/tags"
		var resp struct {
			Models []struct {
				Name string `json:"name"`
			} `json:"models"`
		}
		r, err := c.http.R().SetContext(ctx).SetResult(&resp).Get(url)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("ollama list models: %s; body: %s", r.Status(), abbreviate(r.String(), 500))
		}
		out := make([]ports.ModelInfo, 0, len(resp.Models))
		for _, m := range resp.Models {
			out = append(out, ports.ModelInfo{Name: m.Name})
		}
		return out, nil
	case domain.ProviderOpenAI, domain.ProviderOpenRouter:
		url := strings.TrimRight(c.apiBase(), "/") + "/models"
		var resp struct {
			Data []struct {
				ID            string `json:"id"`
				Name          string `json:"name"`
				ContextLength int    `json:"context_length"`
			} `json:"data"`
		}
		r, err := c.http.R().SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.APIKey).
			SetResult(&resp).Get(url)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("%s list models: %s; body: %s", c.ProviderType, r.Status(), abbreviate(r.String(), 500))
		}
		out := make([]ports.ModelInfo, 0, len(resp.Data))
		for _, d := range resp.Data {
			label := d.Name
			if label == "" {
				label = d.ID
			}
			out = append(out, ports.ModelInfo{Name: d.ID, Description: label, ContextTokens: d.ContextLength})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: %w", c.ProviderType, domain.ErrUnsupportedProvider)
	}
}

func (c *Client) Test(ctx context.Context) error { _, err := c.ListModels(ctx); return err }

func (c *Client) chatURL() string {
	return strings.TrimRight(c.apiBase(), "/") + "/chat/completions"
}

// apiBase resolves the versioned API root, tolerating configs that include
// or omit the /api/v1 (openrouter) / /v1 (openai) suffix.
func (c *Client) apiBase() string {
	base := strings.TrimRight(c.BaseURL, "/")
	switch c.ProviderType {
	case domain.ProviderOpenRouter:
		if base == "" {
			base = "https://openrouter.ai"
		}
		if idx := strings.Index(base, "/api/v1"); idx >= 0 {
			return base[:idx+len("/api/v1")]
		}
		return base + "/api/v1"
	default:
		if base == "" {
			base = "https://api.openai.com"
		}
		if strings.HasSuffix(base, "/v1") {
			return base
		}
		return base + "/v1"
	}
}

// cleanAnswer strips fenced code blocks and symmetric quoting that chat
// models wrap around an otherwise plain translation.
func cleanAnswer(content string) string {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && nl < 20 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		if !strings.Contains(inner, `"`) {
			s = inner
		}
	}
	return s
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
