package ports

import "context"

// PromptVars is the variable context for placeholder substitution. Values
// render via their string form; nil renders as the empty string.
type PromptVars map[string]any

type Prompt struct {
	System string
	User   string
}

// PromptBuilder renders a translation or review prompt from a stored
// template (by id) or the builtin default for the kind.
type PromptBuilder interface {
	Build(ctx context.Context, kind string, templateID *int64, vars PromptVars) (Prompt, error)
}
