// Package prompt renders translation and review prompts from stored
// templates with {{variable}} placeholders, falling back to builtin
// defaults when no usable template exists.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
)

const defaultTranslationSystem = "You are a professional translator. Translate the given text from {{sourceLang}} to {{targetLang}}. The domain is {{glossaryName}} terminology within the {{domain}} field. Preserve formatting, placeholders and inline markup exactly. Return only the translated text with no commentary."

const defaultTranslationUser = "Translate from {{sourceLang}} to {{targetLang}}:\n\n{{sourceText}}"

const defaultReviewSystem = "You are a translation reviewer for the {{domain}} domain. Compare the source text with its {{targetLang}} translation and return the corrected translation only."

const defaultReviewUser = "Source ({{sourceLang}}):\n{{sourceText}}\n\nTranslation ({{targetLang}}):\n{{translatedText}}"

var placeholderRE = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

type Builder struct {
	Templates ports.TemplateRepository
	Log       *slog.Logger
}

func New(templates ports.TemplateRepository, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{Templates: templates, Log: log}
}

// Build renders system and user prompts for the given kind. A template id
// that is missing, inactive, empty, or of the wrong kind falls back to the
// builtin default; the build itself never fails on template content.
func (b *Builder) Build(ctx context.Context, kind string, templateID *int64, vars ports.PromptVars) (ports.Prompt, error) {
	if kind != domain.TemplateTranslation && kind != domain.TemplateReview {
		return ports.Prompt{}, domain.Validationf("unknown prompt kind %q", kind)
	}
	system, user := builtinTemplates(kind)
	if templateID != nil {
		t, err := b.Templates.Get(ctx, *templateID)
		if err != nil {
			return ports.Prompt{}, fmt.Errorf("load template %d: %w", *templateID, err)
		}
		switch {
		case t == nil:
			b.Log.Warn("prompt template not found, using builtin", "template_id", *templateID, "kind", kind)
		case t.Type != kind:
			b.Log.Warn("prompt template has wrong kind, using builtin", "template_id", *templateID, "want", kind, "got", t.Type)
		case !t.IsActive || t.Content == "":
			b.Log.Warn("prompt template inactive or empty, using builtin", "template_id", *templateID)
		default:
			user = t.Content
		}
	}
	return ports.Prompt{
		System: b.render(system, vars),
		User:   b.render(user, vars),
	}, nil
}

// render substitutes every {{name}} occurrence with the string form of the
// matching variable. nil renders as "". An unresolved placeholder is logged
// and left literally intact; rendering never fails.
func (b *Builder) render(tpl string, vars ports.PromptVars) string {
	return placeholderRE.ReplaceAllStringFunc(tpl, func(m string) string {
		name := placeholderRE.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			b.Log.Warn("unresolved prompt placeholder", "name", name)
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

func builtinTemplates(kind string) (system, user string) {
	if kind == domain.TemplateReview {
		return defaultReviewSystem, defaultReviewUser
	}
	return defaultTranslationSystem, defaultTranslationUser
}

// TranslationVars assembles the standard variable context for a translation
// prompt. Domain defaults to "general" and glossaryName to "None".
func TranslationVars(sourceText, sourceLang, targetLang, domainName, glossaryName string) ports.PromptVars {
	if domainName == "" {
		domainName = "general"
	}
	if glossaryName == "" {
		glossaryName = "None"
	}
	return ports.PromptVars{
		"sourceText":   sourceText,
		"sourceLang":   sourceLang,
		"targetLang":   targetLang,
		"domain":       domainName,
		"glossaryName": glossaryName,
	}
}

// ReviewVars extends TranslationVars with the translated text.
func ReviewVars(sourceText, translatedText, sourceLang, targetLang, domainName, glossaryName string) ports.PromptVars {
	vars := TranslationVars(sourceText, sourceLang, targetLang, domainName, glossaryName)
	vars["translatedText"] = translatedText
	return vars
}
