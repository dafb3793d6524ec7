package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/translator"
)

// SegmentTranslator is the per-segment unit of work a worker drives.
type SegmentTranslator interface {
	TranslateSegment(ctx context.Context, req translator.Request) (*domain.Segment, error)
}

// ProgressUpdater settles file-level status after a batch finishes.
type ProgressUpdater interface {
	RecomputeFileStatus(ctx context.Context, fileID int64) error
}

// ExecutorDeps wires the worker's collaborators.
type ExecutorDeps struct {
	Segments   ports.SegmentRepository
	Files      ports.FileRepository
	Translator SegmentTranslator
	Progress   ProgressUpdater
}

// RunWorkers starts n polling workers that claim and execute jobs until
// ctx is done. Delivery is at-least-once; segment-level idempotency makes
// replays safe.
func (s *Service) RunWorkers(ctx context.Context, n int, pollInterval time.Duration, deps ExecutorDeps) {
	if n <= 0 {
		n = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	for i := 0; i < n; i++ {
		go s.workerLoop(ctx, i, pollInterval, deps)
	}
}

func (s *Service) workerLoop(ctx context.Context, id int, pollInterval time.Duration, deps ExecutorDeps) {
	log := s.log.With("worker", id)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		job, err := s.jobs.Claim(ctx, time.Now(), uuid.NewString())
		if err != nil {
			log.Error("claim failed", "err", err)
			continue
		}
		if job == nil {
			continue
		}
		s.execute(ctx, job, deps, log)
	}
}

func (s *Service) execute(parent context.Context, job *domain.Job, deps ExecutorDeps, log *slog.Logger) {
	jctx, cancel := context.WithCancel(parent)
	s.trackActive(job.ID, cancel)
	defer func() {
		cancel()
		s.untrackActive(job.ID)
	}()

	log.Info("job started", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts)
	s.logJob(job.ID, "info", fmt.Sprintf("attempt %d started", job.Attempts))

	err := s.runJob(jctx, job, deps)
	switch {
	case err == nil:
		if e := s.jobs.MarkCompleted(context.Background(), job.ID); e != nil {
			log.Warn("mark completed failed", "job_id", job.ID, "err", e)
		}
		s.logJob(job.ID, "info", "completed")
	case errors.Is(err, context.Canceled) && parent.Err() == nil:
		// Cancelled via Cancel(), not worker shutdown.
		if e := s.jobs.MarkCancelled(context.Background(), job.ID); e != nil {
			log.Warn("mark cancelled failed", "job_id", job.ID, "err", e)
		}
		s.logJob(job.ID, "info", "cancelled")
	case job.Attempts >= s.policy.MaxAttempts || !retryable(err):
		if e := s.jobs.MarkFailed(context.Background(), job.ID, err.Error()); e != nil {
			log.Warn("mark failed failed", "job_id", job.ID, "err", e)
		}
		s.logJob(job.ID, "error", fmt.Sprintf("failed permanently: %v", err))
	default:
		delay := s.policy.delayFor(job.Attempts)
		if e := s.jobs.Delay(context.Background(), job.ID, time.Now().Add(delay), err.Error()); e != nil {
			log.Warn("schedule retry failed", "job_id", job.ID, "err", e)
		}
		s.logJob(job.ID, "warn", fmt.Sprintf("attempt %d failed, retrying in %s: %v", job.Attempts, delay, err))
	}
}

// retryable classifies job-level errors: validation and not-found failures
// are permanent, provider/infrastructure failures are worth another pass.
func retryable(err error) bool {
	if domain.IsValidation(err) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnsupportedProvider) {
		return false
	}
	return true
}

// dispatchGate decides whether the job may hand out another segment: the
// worker context must be live and the row must not have been cancelled,
// possibly by a Cancel issued from another process.
func (s *Service) dispatchGate(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("re-read job %s: %w", jobID, err)
	}
	if j != nil && j.Status == domain.JobCancelled {
		return context.Canceled
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job *domain.Job, deps ExecutorDeps) error {
	switch job.Type {
	case domain.JobTypeFile:
		if job.FileID == nil {
			return domain.Validationf("file job %s has no file id", job.ID)
		}
		return s.runFileSegments(ctx, job, *job.FileID, deps, true)
	case domain.JobTypeProject:
		return s.runProject(ctx, job, deps)
	default:
		return domain.Validationf("unknown job type %q", job.Type)
	}
}

// runFileSegments translates every retryable segment of one file. Segment
// failures are isolated: each is recorded and the loop continues, and the
// aggregate failure is reported at the end so job-level retry can pick up
// only the segments still in a retryable state.
func (s *Service) runFileSegments(ctx context.Context, job *domain.Job, fileID int64, deps ExecutorDeps, trackProgress bool) error {
	segs, err := deps.Segments.ListByFileStatus(ctx, fileID, domain.RetryableSegmentStatuses)
	if err != nil {
		return fmt.Errorf("list segments: %w", err)
	}
	total := len(segs)
	if trackProgress {
		_ = s.jobs.UpdateProgress(ctx, job.ID, 0, total)
	}
	// Cancellation is observed only between dispatches: a segment already
	// handed to the provider runs on a detached context so the call
	// completes and persists normally.
	segCtx := context.WithoutCancel(ctx)
	var failed int
	var lastErr error
	for i, seg := range segs {
		if err := s.dispatchGate(ctx, job.ID); err != nil {
			return err
		}
		_, err := deps.Translator.TranslateSegment(segCtx, translator.Request{
			SegmentID:        seg.ID,
			Actor:            job.SubmittedBy,
			AIConfigID:       job.AIConfigID,
			PromptTemplateID: job.PromptTemplateID,
			Options:          job.Options,
		})
		if err != nil {
			failed++
			lastErr = err
			s.logJob(job.ID, "error", fmt.Sprintf("segment %d: %v", seg.ID, err))
		}
		if trackProgress {
			_ = s.jobs.UpdateProgress(segCtx, job.ID, i+1, total)
		}
	}
	if deps.Progress != nil {
		if err := deps.Progress.RecomputeFileStatus(segCtx, fileID); err != nil {
			s.log.Warn("final progress recompute failed", "file_id", fileID, "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d segments failed, last error: %w", failed, total, lastErr)
	}
	return nil
}

func (s *Service) runProject(ctx context.Context, job *domain.Job, deps ExecutorDeps) error {
	files, err := deps.Files.ListByProjectStatus(ctx, job.ProjectID, domain.FileTranslating)
	if err != nil {
		return fmt.Errorf("list project files: %w", err)
	}
	// Aggregate progress across files.
	total := 0
	perFile := make(map[int64]int, len(files))
	for _, f := range files {
		n, err := deps.Segments.CountByFileStatus(ctx, f.ID, domain.RetryableSegmentStatuses)
		if err != nil {
			return fmt.Errorf("count segments: %w", err)
		}
		perFile[f.ID] = n
		total += n
	}
	_ = s.jobs.UpdateProgress(ctx, job.ID, 0, total)
	done := 0
	var failedFiles int
	var lastErr error
	for _, f := range files {
		if err := s.runFileSegments(ctx, job, f.ID, deps, false); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return err
			}
			failedFiles++
			lastErr = err
			s.logJob(job.ID, "error", fmt.Sprintf("file %d: %v", f.ID, err))
		}
		done += perFile[f.ID]
		_ = s.jobs.UpdateProgress(ctx, job.ID, done, total)
	}
	if failedFiles > 0 {
		return fmt.Errorf("%d of %d files had failures, last error: %w", failedFiles, len(files), lastErr)
	}
	return nil
}

func (s *Service) logJob(jobID, level, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.AddLog(ctx, &domain.JobLog{JobID: jobID, Level: level, Message: message}); err != nil {
		s.log.Warn("job log write failed", "job_id", jobID, "err", err)
	}
}
