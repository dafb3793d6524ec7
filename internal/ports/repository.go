package ports

import (
	"context"
	"time"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	Get(ctx context.Context, id int64) (*domain.Project, error)
}

type FileRepository interface {
	Create(ctx context.Context, f *domain.File) error
	Get(ctx context.Context, id int64) (*domain.File, error)
	ListByProject(ctx context.Context, projectID int64) ([]*domain.File, error)
	ListByProjectStatus(ctx context.Context, projectID int64, status string) ([]*domain.File, error)
	// UpdateStatus moves the file to status and replaces errorDetails.
	UpdateStatus(ctx context.Context, id int64, status, errorDetails string) error
	// BulkUpdateStatus moves every listed file to status in one statement.
	BulkUpdateStatus(ctx context.Context, ids []int64, status string) error
}

type SegmentRepository interface {
	Get(ctx context.Context, id int64) (*domain.Segment, error)
	InsertBatch(ctx context.Context, segs []*domain.Segment) error
	ListByFileStatus(ctx context.Context, fileID int64, statuses []string) ([]*domain.Segment, error)
	CountByFileStatus(ctx context.Context, fileID int64, statuses []string) (int, error)
	// ClaimForTranslation conditionally moves the segment to TRANSLATING
	// iff its status is still one of the retryable states. Returns false
	// when another worker won the race.
	ClaimForTranslation(ctx context.Context, id int64) (bool, error)
	// MarkTranslatedTM conditionally completes a segment straight from a
	// retryable state on a TM hit, with zero token/processing cost.
	// Returns false when the segment was no longer claimable.
	MarkTranslatedTM(ctx context.Context, id int64, translation string) (bool, error)
	MarkTranslated(ctx context.Context, id int64, translation string, meta domain.TranslationMeta) error
	MarkError(ctx context.Context, id int64, msg string) error
}

type TMRepository interface {
	// Find returns the entry matching the logical unique key exactly, or
	// nil when absent. A nil projectID matches only global entries.
	Find(ctx context.Context, sourceLang, targetLang, sourceText string, projectID *int64) (*domain.TMEntry, error)
	// ListByLangPair returns project-scoped plus global entries for the pair.
	ListByLangPair(ctx context.Context, sourceLang, targetLang string, projectID *int64) ([]*domain.TMEntry, error)
	Insert(ctx context.Context, e *domain.TMEntry) error
	// UpdateTarget overwrites the target text and bumps usage stats.
	UpdateTarget(ctx context.Context, id int64, targetText string) error
	// BumpUsage increments usage_count and refreshes last_used_at.
	BumpUsage(ctx context.Context, id int64) error
}

type ProviderConfigRepository interface {
	Get(ctx context.Context, id int64) (*domain.ProviderConfig, error)
	List(ctx context.Context) ([]*domain.ProviderConfig, error)
}

type TemplateRepository interface {
	Get(ctx context.Context, id int64) (*domain.PromptTemplate, error)
}

type TerminologyRepository interface {
	Get(ctx context.Context, id int64) (*domain.Terminology, error)
}

type JobRepository interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	// Insert creates the row. Inserting an id that already exists surfaces
	// domain.ErrAlreadyExists.
	Insert(ctx context.Context, j *domain.Job) error
	// Reset rearms a terminal job row for a fresh submission.
	Reset(ctx context.Context, j *domain.Job) error
	// Claim atomically leases the oldest runnable job (waiting, or delayed
	// with next_run_at due) to the given lease token. Returns nil when no
	// job is runnable.
	Claim(ctx context.Context, now time.Time, leaseToken string) (*domain.Job, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string) error
	// Delay schedules a retry: status delayed, next_run_at set, error kept.
	Delay(ctx context.Context, id string, until time.Time, lastError string) error
	// CancelPending conditionally cancels a waiting/delayed job. Returns
	// false when the job was not in a cancellable-at-rest state.
	CancelPending(ctx context.Context, id string) (bool, error)
	// CancelActive conditionally cancels a job a worker currently holds.
	// The flip is durable, so a worker in any process observes it between
	// segment dispatches.
	CancelActive(ctx context.Context, id string) (bool, error)
	MarkCancelled(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, done, total int) error
	AddLog(ctx context.Context, l *domain.JobLog) error
	ListLogs(ctx context.Context, jobID string, limit int) ([]*domain.JobLog, error)
}
