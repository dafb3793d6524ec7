package domain

import "time"

// File statuses. Transitions run forward only, except ERROR which may
// re-enter TRANSLATING on retry.
const (
	FilePending     = "PENDING"
	FileProcessing  = "PROCESSING"
	FileExtracted   = "EXTRACTED"
	FileTranslating = "TRANSLATING"
	FileTranslated  = "TRANSLATED"
	FileError       = "ERROR"
)

type File struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	SegmentCount int       `json:"segment_count"`
	SourceLang   string    `json:"source_lang"`
	TargetLang   string    `json:"target_lang"`
	ErrorDetails string    `json:"error_details"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Translatable reports whether translation may start for this file.
func (f *File) Translatable() bool {
	return f.Status == FileExtracted || f.Status == FileError
}
