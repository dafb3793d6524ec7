// Package translator orchestrates the translation of a single segment:
// TM lookup, prompt construction, provider call, result persistence and
// progress notification.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	promptbuilder "github.com/Jjjmaes/AIT-sub000/internal/adapters/prompt"
	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/tm"
)

// ProviderFactory resolves a stored config to a live adapter.
type ProviderFactory interface {
	FromConfig(cfg *domain.ProviderConfig) (ports.Provider, error)
}

// ProgressNotifier recomputes file-level status after a segment completes.
type ProgressNotifier interface {
	RecomputeFileStatus(ctx context.Context, fileID int64) error
}

type Deps struct {
	Segments      ports.SegmentRepository
	Files         ports.FileRepository
	Projects      ports.ProjectRepository
	Providers     ports.ProviderConfigRepository
	Terminologies ports.TerminologyRepository
	TM            *tm.Engine
	Prompt        ports.PromptBuilder
	Factory       ProviderFactory
	Progress      ProgressNotifier
	Log           *slog.Logger
	// CallTimeout bounds each provider call. Zero means 60s.
	CallTimeout time.Duration
}

type Service struct{ d Deps }

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = 60 * time.Second
	}
	return &Service{d: d}
}

// Request identifies one unit of segment work.
type Request struct {
	SegmentID        int64
	Actor            string
	AIConfigID       int64
	PromptTemplateID *int64
	Options          domain.JobOptions
}

// TranslateSegment runs the per-segment state machine. A segment that is
// not in a retryable state is returned unchanged (idempotent skip), so a
// replayed job never duplicates work or spend.
func (s *Service) TranslateSegment(ctx context.Context, req Request) (*domain.Segment, error) {
	seg, err := s.d.Segments.Get(ctx, req.SegmentID)
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	if seg == nil {
		return nil, domain.NotFoundError("segment", req.SegmentID)
	}
	if !seg.Retryable() {
		return seg, nil
	}

	file, err := s.d.Files.Get(ctx, seg.FileID)
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return nil, domain.NotFoundError("file", seg.FileID)
	}
	sourceLang, targetLang := resolveLangs(req.Options, file)
	if sourceLang == "" || targetLang == "" {
		return nil, domain.Validationf("segment %d: source and target language must be set on the file or the request", seg.ID)
	}

	// TM first: an exact hit completes the segment without touching the
	// provider. The conditional update doubles as the claim.
	if !req.Options.RetranslateTM {
		if done, out, err := s.tryTranslateFromTM(ctx, seg, file, sourceLang, targetLang); err != nil {
			return nil, err
		} else if done {
			return out, nil
		}
	}

	claimed, err := s.d.Segments.ClaimForTranslation(ctx, seg.ID)
	if err != nil {
		return nil, fmt.Errorf("claim segment %d: %w", seg.ID, err)
	}
	if !claimed {
		// Another worker got there first.
		return s.d.Segments.Get(ctx, seg.ID)
	}

	out, err := s.translateWithProvider(ctx, seg, file, sourceLang, targetLang, req)
	if err != nil {
		s.markError(seg.ID, err)
		return nil, fmt.Errorf("translate segment %d: %w", seg.ID, err)
	}
	s.notifyProgress(seg.FileID)
	return out, nil
}

func (s *Service) tryTranslateFromTM(ctx context.Context, seg *domain.Segment, file *domain.File, sourceLang, targetLang string) (bool, *domain.Segment, error) {
	matches, err := s.d.TM.FindMatches(ctx, seg.SourceText, sourceLang, targetLang, &file.ProjectID)
	if err != nil {
		return false, nil, fmt.Errorf("tm lookup for segment %d: %w", seg.ID, err)
	}
	if len(matches) == 0 || matches[0].Score < 100 {
		return false, nil, nil
	}
	hit := matches[0]
	ok, err := s.d.Segments.MarkTranslatedTM(ctx, seg.ID, hit.Entry.TargetText)
	if err != nil {
		return false, nil, fmt.Errorf("apply tm match to segment %d: %w", seg.ID, err)
	}
	if !ok {
		// Lost the race; whoever won owns the segment now.
		out, err := s.d.Segments.Get(ctx, seg.ID)
		return true, out, err
	}
	s.d.TM.RecordUse(ctx, hit.Entry.ID)
	s.notifyProgress(seg.FileID)
	return true, s.applyTM(seg, hit.Entry.TargetText), nil
}

func (s *Service) translateWithProvider(ctx context.Context, seg *domain.Segment, file *domain.File, sourceLang, targetLang string, req Request) (*domain.Segment, error) {
	terms, glossaryName := s.fetchTerminology(ctx, req.Options.TerminologyID)

	cfg, err := s.d.Providers.Get(ctx, req.AIConfigID)
	if err != nil {
		return nil, fmt.Errorf("load provider config: %w", err)
	}
	if cfg == nil {
		return nil, domain.NotFoundError("provider config", req.AIConfigID)
	}
	model := req.Options.AIModel
	if model == "" {
		model = cfg.DefaultModel()
	}
	if cfg.ProviderName == "" || model == "" {
		return nil, domain.Validationf("provider config %d is missing provider name or models", cfg.ID)
	}
	adapter, err := s.d.Factory.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	domainName := req.Options.Domain
	if domainName == "" {
		if p, err := s.d.Projects.Get(ctx, file.ProjectID); err == nil && p != nil {
			domainName = p.Domain
		}
	}
	vars := promptbuilder.TranslationVars(withTerms(seg.SourceText, terms), sourceLang, targetLang, domainName, glossaryName)
	built, err := s.d.Prompt.Build(ctx, domain.TemplateTranslation, req.PromptTemplateID, vars)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	temperature := cfg.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	callCtx, cancel := context.WithTimeout(ctx, s.d.CallTimeout)
	defer cancel()
	start := time.Now()
	res, err := adapter.Translate(callCtx, ports.TranslateRequest{
		SystemPrompt: built.System,
		UserPrompt:   built.User,
		Model:        model,
		Temperature:  temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ProviderError{Provider: cfg.ProviderName, Msg: fmt.Sprintf("call timed out after %s", s.d.CallTimeout), Err: err}
		}
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, &domain.ProviderError{Provider: cfg.ProviderName, Msg: "empty translation returned"}
	}
	if missing := missingPlaceholders(seg.SourceText, res.Text); len(missing) > 0 {
		return nil, &domain.ProviderError{
			Provider: cfg.ProviderName,
			Msg:      fmt.Sprintf("translation dropped placeholders: %s", strings.Join(missing, ", ")),
		}
	}

	meta := domain.TranslationMeta{
		AIModel:          res.Model,
		PromptTemplateID: req.PromptTemplateID,
		TokenCount:       res.Tokens.Total,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
	if err := s.d.Segments.MarkTranslated(ctx, seg.ID, res.Text, meta); err != nil {
		return nil, fmt.Errorf("persist translation: %w", err)
	}
	s.d.Log.Debug("segment translated",
		"segment_id", seg.ID, "model", res.Model, "tokens", res.Tokens.Total, "ms", meta.ProcessingTimeMs)
	out := *seg
	out.Translation = &res.Text
	out.Status = domain.SegmentTranslated
	out.Meta = meta
	out.Error = nil
	return &out, nil
}

// fetchTerminology is best-effort: a failure degrades to "no terms".
func (s *Service) fetchTerminology(ctx context.Context, id *int64) ([]domain.Term, string) {
	if id == nil {
		return nil, ""
	}
	t, err := s.d.Terminologies.Get(ctx, *id)
	if err != nil {
		s.d.Log.Warn("terminology fetch failed, continuing without terms", "terminology_id", *id, "err", err)
		return nil, ""
	}
	if t == nil {
		s.d.Log.Warn("terminology not found, continuing without terms", "terminology_id", *id)
		return nil, ""
	}
	return t.Terms, t.Name
}

// withTerms appends matched glossary pairs as an instruction block so the
// model applies project terminology.
func withTerms(sourceText string, terms []domain.Term) string {
	var hits []domain.Term
	lower := strings.ToLower(sourceText)
	for _, t := range terms {
		if t.Source != "" && strings.Contains(lower, strings.ToLower(t.Source)) {
			hits = append(hits, t)
		}
	}
	if len(hits) == 0 {
		return sourceText
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Source < hits[j].Source })
	var b strings.Builder
	b.WriteString(sourceText)
	b.WriteString("\n\nUse this terminology:\n")
	for _, t := range hits {
		fmt.Fprintf(&b, "- %s => %s\n", t.Source, t.Target)
	}
	return b.String()
}

var segmentPlaceholderRE = regexp.MustCompile(`\{\{?[a-zA-Z0-9_.]+\}?\}|%[sdvf]`)

// missingPlaceholders lists interpolation tokens present in the source but
// absent from the translation. Models occasionally localize or drop them,
// which breaks the consuming application at runtime.
func missingPlaceholders(source, translated string) []string {
	tokens := segmentPlaceholderRE.FindAllString(source, -1)
	if len(tokens) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var missing []string
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if !strings.Contains(translated, tok) {
			missing = append(missing, tok)
		}
	}
	return missing
}

func (s *Service) applyTM(seg *domain.Segment, target string) *domain.Segment {
	out := *seg
	out.Translation = &target
	out.Status = domain.SegmentTranslatedTM
	out.Meta = domain.TranslationMeta{}
	out.Error = nil
	return &out
}

// markError persists the failure state best-effort; the original error is
// what propagates to the queue layer.
func (s *Service) markError(segmentID int64, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.d.Segments.MarkError(ctx, segmentID, cause.Error()); err != nil {
		s.d.Log.Error("failed to mark segment ERROR", "segment_id", segmentID, "err", err)
	}
}

// notifyProgress fires the file-level recompute without blocking or failing
// the segment's completion path.
func (s *Service) notifyProgress(fileID int64) {
	if s.d.Progress == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.d.Progress.RecomputeFileStatus(ctx, fileID); err != nil {
			s.d.Log.Warn("file progress recompute failed", "file_id", fileID, "err", err)
		}
	}()
}

func resolveLangs(opts domain.JobOptions, file *domain.File) (string, string) {
	src := opts.SourceLanguage
	if src == "" {
		src = file.SourceLang
	}
	tgt := opts.TargetLanguage
	if tgt == "" {
		tgt = file.TargetLang
	}
	return src, tgt
}
