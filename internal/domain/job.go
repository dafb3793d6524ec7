package domain

import (
	"fmt"
	"time"
)

// Job types.
const (
	JobTypeFile    = "file"
	JobTypeProject = "project"
)

// Job statuses. waiting, active and delayed are cancellable; completed,
// failed and cancelled are terminal.
const (
	JobWaiting   = "waiting"
	JobActive    = "active"
	JobDelayed   = "delayed"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// JobID derives the deterministic identity for a job. Identity is a pure
// function of (type, entity id) so a resubmission while a job is outstanding
// resolves to the same row instead of spawning a duplicate.
func JobID(jobType string, entityID int64) string {
	return fmt.Sprintf("%s:%d", jobType, entityID)
}

// Job is one unit of asynchronous translation work persisted in the broker
// table. Workers claim it with a lease token and drive it to a terminal
// state; rows are retained after completion for inspection.
type Job struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	ProjectID        int64      `json:"project_id"`
	FileID           *int64     `json:"file_id"`
	AIConfigID       int64      `json:"ai_config_id"`
	PromptTemplateID *int64     `json:"prompt_template_id"`
	Options          JobOptions `json:"options"`
	SubmittedBy      string     `json:"submitted_by"`
	Status           string     `json:"status"`
	Attempts         int        `json:"attempts"`
	LastError        string     `json:"last_error"`
	Progress         int        `json:"progress"`
	Total            int        `json:"total"`
	LeaseToken       string     `json:"-"`
	NextRunAt        *time.Time `json:"next_run_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Terminal reports whether no worker will touch this job again.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Cancellable reports whether Cancel has an effect in the current state.
func (j *Job) Cancellable() bool {
	switch j.Status {
	case JobWaiting, JobActive, JobDelayed:
		return true
	}
	return false
}

// JobOptions carries per-submission overrides shared across the queue wire
// contract. All fields are optional.
type JobOptions struct {
	SourceLanguage string   `json:"source_language,omitempty"`
	TargetLanguage string   `json:"target_language,omitempty"`
	Domain         string   `json:"domain,omitempty"`
	AIModel        string   `json:"ai_model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	TerminologyID  *int64   `json:"terminology_id,omitempty"`
	RetranslateTM  bool     `json:"retranslate_tm,omitempty"`
}

// JobLog is a single worker-emitted log line attached to a job.
type JobLog struct {
	ID      int64     `json:"id"`
	JobID   string    `json:"job_id"`
	Time    time.Time `json:"ts"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}
