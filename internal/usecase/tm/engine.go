// Package tm implements the translation memory engine: exact and fuzzy
// lookup of confirmed translation pairs, upsert bookkeeping, and TMX
// import/export.
package tm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
)

// Upsert outcomes.
const (
	StatusAdded   = "added"
	StatusUpdated = "updated"
)

// DefaultMinScore is the fuzzy floor: candidates below it are not reported.
const DefaultMinScore = 70

type Match struct {
	Entry *domain.TMEntry
	Score int
}

type Engine struct {
	repo     ports.TMRepository
	scorer   Scorer
	minScore int
	log      *slog.Logger
}

func NewEngine(repo ports.TMRepository, scorer Scorer, log *slog.Logger) *Engine {
	if scorer == nil {
		scorer = LevenshteinScorer{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{repo: repo, scorer: scorer, minScore: DefaultMinScore, log: log}
}

// AddEntry inserts or updates the entry for the logical unique key
// (sourceLang, targetLang, sourceText, projectID). An existing entry gets
// its target overwritten (when different) and its usage stats bumped either
// way; a new entry starts at usageCount 1.
func (e *Engine) AddEntry(ctx context.Context, sourceLang, targetLang, sourceText, targetText string, projectID *int64, createdBy string) (*domain.TMEntry, string, error) {
	if strings.TrimSpace(sourceText) == "" || strings.TrimSpace(targetText) == "" {
		return nil, "", domain.Validationf("source and target text are required")
	}
	if sourceLang == "" || targetLang == "" {
		return nil, "", domain.Validationf("source and target language are required")
	}
	existing, err := e.repo.Find(ctx, sourceLang, targetLang, sourceText, projectID)
	if err != nil {
		return nil, "", fmt.Errorf("tm lookup: %w", err)
	}
	if existing != nil {
		if existing.TargetText != targetText {
			if err := e.repo.UpdateTarget(ctx, existing.ID, targetText); err != nil {
				return nil, "", fmt.Errorf("tm update: %w", err)
			}
			existing.TargetText = targetText
		} else {
			if err := e.repo.BumpUsage(ctx, existing.ID); err != nil {
				return nil, "", fmt.Errorf("tm bump usage: %w", err)
			}
		}
		existing.UsageCount++
		return existing, StatusUpdated, nil
	}
	entry := &domain.TMEntry{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		SourceText: sourceText,
		TargetText: targetText,
		ProjectID:  projectID,
		UsageCount: 1,
		CreatedBy:  createdBy,
	}
	if err := e.repo.Insert(ctx, entry); err != nil {
		return nil, "", fmt.Errorf("tm insert: %w", err)
	}
	return entry, StatusAdded, nil
}

// FindMatches returns entries for the language pair scored against
// sourceText, sorted descending. Exact equality scores 100; everything else
// goes through the fuzzy scorer and is dropped below the floor.
func (e *Engine) FindMatches(ctx context.Context, sourceText, sourceLang, targetLang string, projectID *int64) ([]Match, error) {
	candidates, err := e.repo.ListByLangPair(ctx, sourceLang, targetLang, projectID)
	if err != nil {
		return nil, fmt.Errorf("tm list: %w", err)
	}
	var out []Match
	for _, c := range candidates {
		score := 0
		if c.SourceText == sourceText {
			score = 100
		} else {
			score = e.scorer.Score(sourceText, c.SourceText)
			if score >= 100 {
				// Only true equality may report 100.
				score = 99
			}
		}
		if score < e.minScore {
			continue
		}
		out = append(out, Match{Entry: c, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// RecordUse bumps usage stats after a match was applied to a segment.
// Failures are logged, not propagated: stats must never undo a translation.
func (e *Engine) RecordUse(ctx context.Context, entryID int64) {
	if err := e.repo.BumpUsage(ctx, entryID); err != nil {
		e.log.Warn("tm usage bump failed", "entry_id", entryID, "err", err)
	}
}
