package ports

import (
	"context"
	"time"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

// SubmitParams is the wire-level job payload submitters and workers agree on.
type SubmitParams struct {
	ProjectID        int64
	FileID           int64
	AIConfigID       int64
	PromptTemplateID *int64
	Options          domain.JobOptions
	SubmittedBy      string
}

// JobStatus is the polling response shape.
type JobStatus struct {
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	Total        int        `json:"total"`
	Attempts     int        `json:"attempts"`
	FailedReason string     `json:"failed_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
}

// JobQueue is the durable, at-least-once submission surface. Submitting for
// an entity with a job already in flight returns the existing job id.
type JobQueue interface {
	SubmitFileJob(ctx context.Context, p SubmitParams) (string, error)
	SubmitProjectJob(ctx context.Context, p SubmitParams) (string, error)
	GetStatus(ctx context.Context, jobID string) (*JobStatus, error)
	Cancel(ctx context.Context, jobID string) error
}
