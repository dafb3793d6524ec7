// Package coordinator validates translation preconditions, fans file and
// project work out to the job queue, and keeps denormalized file status in
// step with segment completion.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
)

type Deps struct {
	Projects ports.ProjectRepository
	Files    ports.FileRepository
	Segments ports.SegmentRepository
	Queue    ports.JobQueue
	Log      *slog.Logger
}

type Service struct{ d Deps }

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Service{d: d}
}

// TranslateFile validates the file and submits a file-scoped job. A file
// that is not in a startable state, or has nothing left to translate, is a
// silent no-op ("" job id, nil error): re-submitting an already-translating
// file is tolerated.
func (s *Service) TranslateFile(ctx context.Context, projectID, fileID int64, actor string, aiConfigID int64, promptTemplateID *int64, opts domain.JobOptions) (string, error) {
	project, err := s.d.Projects.Get(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return "", domain.NotFoundError("project", projectID)
	}
	file, err := s.d.Files.Get(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	if file == nil || file.ProjectID != projectID {
		return "", domain.NotFoundError("file", fileID)
	}
	if src, tgt := resolveLangs(opts, file); src == "" || tgt == "" {
		return "", domain.Validationf("file %d: source and target language must be set before translation", fileID)
	}
	if !file.Translatable() {
		s.d.Log.Info("file not in a translatable state, skipping", "file_id", fileID, "status", file.Status)
		return "", nil
	}
	pending, err := s.d.Segments.CountByFileStatus(ctx, fileID, domain.RetryableSegmentStatuses)
	if err != nil {
		return "", fmt.Errorf("count pending segments: %w", err)
	}
	if pending == 0 {
		s.d.Log.Info("file has no pending segments, skipping", "file_id", fileID)
		return "", nil
	}
	if err := s.d.Files.UpdateStatus(ctx, fileID, domain.FileTranslating, ""); err != nil {
		return "", fmt.Errorf("mark file translating: %w", err)
	}
	jobID, err := s.d.Queue.SubmitFileJob(ctx, ports.SubmitParams{
		ProjectID:        projectID,
		FileID:           fileID,
		AIConfigID:       aiConfigID,
		PromptTemplateID: promptTemplateID,
		Options:          opts,
		SubmittedBy:      actor,
	})
	if err != nil {
		// Roll the transition back: a file left TRANSLATING with no job
		// would refuse every later submission as already in flight.
		if rbErr := s.d.Files.UpdateStatus(ctx, fileID, file.Status, file.ErrorDetails); rbErr != nil {
			s.d.Log.Error("file status rollback failed", "file_id", fileID, "status", file.Status, "err", rbErr)
		}
		return "", fmt.Errorf("submit file job: %w", err)
	}
	s.d.Log.Info("file translation submitted", "file_id", fileID, "job_id", jobID, "pending_segments", pending)
	return jobID, nil
}

// TranslateProject submits one project-scoped job covering every EXTRACTED
// file. Unlike the file-level call, an empty candidate set is a validation
// error: project submission with nothing to translate is a user mistake
// worth surfacing.
func (s *Service) TranslateProject(ctx context.Context, projectID int64, actor string, aiConfigID int64, promptTemplateID *int64, opts domain.JobOptions) (string, error) {
	project, err := s.d.Projects.Get(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return "", domain.NotFoundError("project", projectID)
	}
	files, err := s.d.Files.ListByProjectStatus(ctx, projectID, domain.FileExtracted)
	if err != nil {
		return "", fmt.Errorf("list extracted files: %w", err)
	}
	if len(files) == 0 {
		return "", domain.Validationf("project %d has no extracted files to translate", projectID)
	}
	src, tgt, err := projectLangPair(opts, files)
	if err != nil {
		return "", err
	}
	opts.SourceLanguage = src
	opts.TargetLanguage = tgt

	jobID, err := s.d.Queue.SubmitProjectJob(ctx, ports.SubmitParams{
		ProjectID:        projectID,
		AIConfigID:       aiConfigID,
		PromptTemplateID: promptTemplateID,
		Options:          opts,
		SubmittedBy:      actor,
	})
	if err != nil {
		return "", fmt.Errorf("submit project job: %w", err)
	}
	ids := make([]int64, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	if err := s.d.Files.BulkUpdateStatus(ctx, ids, domain.FileTranslating); err != nil {
		return "", fmt.Errorf("mark files translating: %w", err)
	}
	s.d.Log.Info("project translation submitted", "project_id", projectID, "job_id", jobID, "files", len(files))
	return jobID, nil
}

// projectLangPair derives the single language pair for a project job.
// Every file carrying complete metadata must agree; mixed pairs are
// rejected instead of silently using the first file's pair.
func projectLangPair(opts domain.JobOptions, files []*domain.File) (string, string, error) {
	if opts.SourceLanguage != "" && opts.TargetLanguage != "" {
		return opts.SourceLanguage, opts.TargetLanguage, nil
	}
	src, tgt := "", ""
	for _, f := range files {
		if f.SourceLang == "" || f.TargetLang == "" {
			continue
		}
		if src == "" {
			src, tgt = f.SourceLang, f.TargetLang
			continue
		}
		if f.SourceLang != src || f.TargetLang != tgt {
			return "", "", domain.Validationf(
				"project files disagree on language pair (%s -> %s vs %s -> %s); submit per file or pass an explicit pair",
				src, tgt, f.SourceLang, f.TargetLang)
		}
	}
	if src == "" || tgt == "" {
		return "", "", domain.Validationf("no file carries a complete language pair and none was supplied")
	}
	return src, tgt, nil
}

// RecomputeFileStatus settles the file status from terminal segment counts.
// Idempotent and safe to call after every segment completion, in any order.
func (s *Service) RecomputeFileStatus(ctx context.Context, fileID int64) error {
	file, err := s.d.Files.Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return domain.NotFoundError("file", fileID)
	}
	translated, err := s.d.Segments.CountByFileStatus(ctx, fileID,
		[]string{domain.SegmentTranslated, domain.SegmentTranslatedTM})
	if err != nil {
		return fmt.Errorf("count translated: %w", err)
	}
	failed, err := s.d.Segments.CountByFileStatus(ctx, fileID, domain.TerminalFailureStatuses)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	if translated+failed < file.SegmentCount {
		return nil
	}
	if failed > 0 {
		details := fmt.Sprintf("%d of %d segments failed", failed, file.SegmentCount)
		return s.d.Files.UpdateStatus(ctx, fileID, domain.FileError, details)
	}
	return s.d.Files.UpdateStatus(ctx, fileID, domain.FileTranslated, "")
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
