package domain

import "time"

// Prompt template kinds.
const (
	TemplateTranslation = "TRANSLATION"
	TemplateReview      = "REVIEW"
)

// PromptTemplate holds reusable prompt text with {{variable}} placeholders.
// The kind decides which builtin default applies when the template is
// missing, inactive, empty, or of the wrong kind.
type PromptTemplate struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Variables []string  `json:"variables"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TMEntry is a confirmed translation pair scoped to a language pair and
// optionally a project (nil ProjectID means global). Logical uniqueness is
// on (source_lang, target_lang, source_text, project_id); a repeated exact
// add updates usage stats and target text instead of duplicating.
type TMEntry struct {
	ID         int64     `json:"id"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	SourceText string    `json:"source_text"`
	TargetText string    `json:"target_text"`
	ProjectID  *int64    `json:"project_id"`
	UsageCount int       `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
