package domain

import "time"

// Segment statuses. PENDING and the two failure states are the only entry
// points for translation; everything else is terminal for the translator.
const (
	SegmentPending           = "PENDING"
	SegmentTranslating       = "TRANSLATING"
	SegmentTranslated        = "TRANSLATED"
	SegmentTranslatedTM      = "TRANSLATED_TM"
	SegmentError             = "ERROR"
	SegmentTranslationFailed = "TRANSLATION_FAILED"
)

// RetryableSegmentStatuses lists the states a segment may be picked up from.
var RetryableSegmentStatuses = []string{SegmentPending, SegmentError, SegmentTranslationFailed}

// TerminalFailureStatuses lists the states counted as failed when a file's
// completion is recomputed.
var TerminalFailureStatuses = []string{SegmentError, SegmentTranslationFailed}

type Segment struct {
	ID          int64     `json:"id"`
	FileID      int64     `json:"file_id"`
	Index       int       `json:"idx"`
	SourceText  string    `json:"source_text"`
	Translation *string   `json:"translation"`
	Status      string    `json:"status"`
	Meta        TranslationMeta
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TranslationMeta records how a translation was produced.
type TranslationMeta struct {
	AIModel          string `json:"ai_model"`
	PromptTemplateID *int64 `json:"prompt_template_id"`
	TokenCount       int    `json:"token_count"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// Retryable reports whether the segment may (re)enter translation.
func (s *Segment) Retryable() bool {
	switch s.Status {
	case SegmentPending, SegmentError, SegmentTranslationFailed:
		return true
	}
	return false
}
