// Package queue implements the durable, at-least-once job queue over the
// jobs table: idempotent per-entity submission, status polling, cancellation
// and retrying workers with bounded exponential backoff.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
)

// RetryPolicy bounds how often a failed job is retried and how long each
// retry waits.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy mirrors the classic 3-attempt, 5s/10s/20s schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second},
	}
}

// delayFor returns the backoff before the next attempt, where attempts is
// the number already made.
func (p RetryPolicy) delayFor(attempts int) time.Duration {
	if len(p.Backoff) == 0 {
		return 5 * time.Second
	}
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.Backoff) {
		i = len(p.Backoff) - 1
	}
	return p.Backoff[i]
}

type Service struct {
	jobs   ports.JobRepository
	policy RetryPolicy
	log    *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewService(jobs ports.JobRepository, policy RetryPolicy, log *slog.Logger) *Service {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{jobs: jobs, policy: policy, log: log, active: map[string]context.CancelFunc{}}
}

// SubmitFileJob enqueues translation of one file. Identity is derived from
// the file id: while a job for this file is outstanding, submission returns
// the existing job id instead of enqueueing a duplicate.
func (s *Service) SubmitFileJob(ctx context.Context, p ports.SubmitParams) (string, error) {
	fileID := p.FileID
	job := &domain.Job{
		ID:               domain.JobID(domain.JobTypeFile, fileID),
		Type:             domain.JobTypeFile,
		ProjectID:        p.ProjectID,
		FileID:           &fileID,
		AIConfigID:       p.AIConfigID,
		PromptTemplateID: p.PromptTemplateID,
		Options:          p.Options,
		SubmittedBy:      p.SubmittedBy,
		Status:           domain.JobWaiting,
	}
	return s.submit(ctx, job)
}

// SubmitProjectJob enqueues translation of every translating file in a
// project, with the same per-entity idempotency as file jobs.
func (s *Service) SubmitProjectJob(ctx context.Context, p ports.SubmitParams) (string, error) {
	job := &domain.Job{
		ID:               domain.JobID(domain.JobTypeProject, p.ProjectID),
		Type:             domain.JobTypeProject,
		ProjectID:        p.ProjectID,
		AIConfigID:       p.AIConfigID,
		PromptTemplateID: p.PromptTemplateID,
		Options:          p.Options,
		SubmittedBy:      p.SubmittedBy,
		Status:           domain.JobWaiting,
	}
	return s.submit(ctx, job)
}

func (s *Service) submit(ctx context.Context, job *domain.Job) (string, error) {
	existing, err := s.jobs.Get(ctx, job.ID)
	if err != nil {
		return "", fmt.Errorf("queue unavailable: %w", err)
	}
	if existing != nil {
		if !existing.Terminal() {
			s.log.Info("job already in flight, returning existing", "job_id", job.ID, "status", existing.Status)
			return existing.ID, nil
		}
		if err := s.jobs.Reset(ctx, job); err != nil {
			return "", fmt.Errorf("queue unavailable: %w", err)
		}
		s.log.Info("job resubmitted", "job_id", job.ID)
		return job.ID, nil
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return "", fmt.Errorf("queue unavailable: %w", err)
		}
		// Lost a submit race; surface the row the winner created.
		winner, gerr := s.jobs.Get(ctx, job.ID)
		if gerr != nil {
			return "", fmt.Errorf("queue unavailable: %w", gerr)
		}
		if winner == nil {
			return "", fmt.Errorf("queue unavailable: %w", err)
		}
		s.log.Info("job already in flight, returning existing", "job_id", job.ID, "status", winner.Status)
		return winner.ID, nil
	}
	s.log.Info("job submitted", "job_id", job.ID, "type", job.Type)
	return job.ID, nil
}

// GetStatus returns the polling view of a job. An unknown id is a typed
// not-found error, never a silent default.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*ports.JobStatus, error) {
	j, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("queue unavailable: %w", err)
	}
	if j == nil {
		return nil, domain.NotFoundError("job", jobID)
	}
	st := &ports.JobStatus{
		JobID:     j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Total:     j.Total,
		Attempts:  j.Attempts,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		NextRunAt: j.NextRunAt,
	}
	if j.Status == domain.JobFailed || j.Status == domain.JobDelayed {
		st.FailedReason = j.LastError
	}
	return st, nil
}

// Cancel stops a job. Waiting and delayed jobs are cancelled at rest; an
// active job has its row flipped durably so the worker holding it, in this
// process or another, stops dispatching at the next boundary while in-flight
// provider calls complete and persist normally. Cancelling a job in a
// terminal state is a logged no-op.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	j, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("queue unavailable: %w", err)
	}
	if j == nil {
		return domain.NotFoundError("job", jobID)
	}
	if ok, err := s.jobs.CancelPending(ctx, jobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	} else if ok {
		s.log.Info("job cancelled", "job_id", jobID)
		return nil
	}
	if ok, err := s.jobs.CancelActive(ctx, jobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	} else if ok {
		// When the worker lives in this process, wake it up instead of
		// letting it discover the row at the next dispatch.
		s.mu.Lock()
		cancel, running := s.active[jobID]
		s.mu.Unlock()
		if running {
			cancel()
		}
		s.log.Info("active job cancellation requested", "job_id", jobID)
		return nil
	}
	s.log.Info("cancel is a no-op for job state", "job_id", jobID, "status", j.Status)
	return nil
}

func (s *Service) trackActive(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[jobID] = cancel
	s.mu.Unlock()
}

func (s *Service) untrackActive(jobID string) {
	s.mu.Lock()
	delete(s.active, jobID)
	s.mu.Unlock()
}
