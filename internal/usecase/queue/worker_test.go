package queue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/ports"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/coordinator"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/translator"
)

// stubTranslator adapts a func to the SegmentTranslator surface.
type stubTranslator func(ctx context.Context, req translator.Request) (*domain.Segment, error)

func (f stubTranslator) TranslateSegment(ctx context.Context, req translator.Request) (*domain.Segment, error) {
	return f(ctx, req)
}

// okTranslator mimics the real per-segment state machine: skip non-retryable
// segments, claim, mark translated with a derived text.
func okTranslator(e *env) stubTranslator {
	return func(ctx context.Context, req translator.Request) (*domain.Segment, error) {
		seg, err := e.segments.Get(ctx, req.SegmentID)
		if err != nil || seg == nil || !seg.Retryable() {
			return seg, err
		}
		if ok, err := e.segments.ClaimForTranslation(ctx, seg.ID); err != nil || !ok {
			return seg, err
		}
		text := "T:" + seg.SourceText
		if err := e.segments.MarkTranslated(ctx, seg.ID, text, domain.TranslationMeta{AIModel: "stub"}); err != nil {
			return nil, err
		}
		seg.Translation = &text
		seg.Status = domain.SegmentTranslated
		return seg, nil
	}
}

func failingTranslator(err error) stubTranslator {
	return func(context.Context, translator.Request) (*domain.Segment, error) {
		return nil, err
	}
}

func (e *env) execDeps(tr SegmentTranslator) ExecutorDeps {
	return ExecutorDeps{
		Segments:   e.segments,
		Files:      e.files,
		Translator: tr,
		Progress: coordinator.New(coordinator.Deps{
			Projects: e.projects,
			Files:    e.files,
			Segments: e.segments,
			Queue:    e.svc,
			Log:      discardLogger(),
		}),
	}
}

// claimAndExecute drives one worker pass by hand: claim the runnable job and
// run it to a terminal or delayed state.
func (e *env) claimAndExecute(t *testing.T, now time.Time, deps ExecutorDeps) *domain.Job {
	t.Helper()
	job, err := e.jobs.Claim(context.Background(), now, "test-lease")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatal("no runnable job")
	}
	e.svc.execute(context.Background(), job, deps, discardLogger())
	return job
}

// ---------------------------------------------------------------------------
// file job execution
// ---------------------------------------------------------------------------

func TestExecute_FileJobCompletes(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 3)
	ctx := context.Background()
	jobID, err := e.svc.SubmitFileJob(ctx, submitParams(fileID))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.claimAndExecute(t, time.Now(), e.execDeps(okTranslator(e)))

	st, err := e.svc.GetStatus(ctx, jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != domain.JobCompleted {
		t.Fatalf("job status = %q, want completed", st.Status)
	}
	if st.Progress != 3 || st.Total != 3 {
		t.Errorf("progress = %d/%d, want 3/3", st.Progress, st.Total)
	}
	segs, _ := e.segments.ListByFileStatus(ctx, fileID, nil)
	for _, s := range segs {
		if s.Status != domain.SegmentTranslated {
			t.Errorf("segment %d status = %q, want TRANSLATED", s.ID, s.Status)
		}
		if s.Translation == nil || *s.Translation != "T:"+s.SourceText {
			t.Errorf("segment %d translation = %v, want derived text", s.ID, s.Translation)
		}
	}
	file, _ := e.files.Get(ctx, fileID)
	if file.Status != domain.FileTranslated {
		t.Errorf("file status = %q, want TRANSLATED", file.Status)
	}
}

func TestExecute_ReplayedJobSkipsDoneSegments(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 3)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))
	e.claimAndExecute(t, time.Now(), e.execDeps(okTranslator(e)))

	// Rearm and run again with a translator that fails loudly if invoked:
	// every segment is already terminal, so nothing should be dispatched.
	again, err := e.svc.SubmitFileJob(ctx, submitParams(fileID))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again != jobID {
		t.Fatalf("resubmit id = %q, want %q", again, jobID)
	}
	called := 0
	counting := stubTranslator(func(ctx context.Context, req translator.Request) (*domain.Segment, error) {
		called++
		return okTranslator(e)(ctx, req)
	})
	e.claimAndExecute(t, time.Now(), e.execDeps(counting))
	if called != 0 {
		t.Errorf("translator invoked %d times on replay, want 0", called)
	}
	st, _ := e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobCompleted {
		t.Errorf("replayed job status = %q, want completed", st.Status)
	}
}

func TestExecute_PartialFailureDelaysJob(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 3)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))

	// Fail exactly one segment, translate the rest.
	var failedID int64
	partial := stubTranslator(func(ctx context.Context, req translator.Request) (*domain.Segment, error) {
		if failedID == 0 {
			failedID = req.SegmentID
			_ = e.segments.MarkError(ctx, req.SegmentID, "rate limited")
			return nil, &domain.ProviderError{Provider: "openai", Msg: "rate limited"}
		}
		return okTranslator(e)(ctx, req)
	})
	e.claimAndExecute(t, time.Now(), e.execDeps(partial))

	st, _ := e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobDelayed {
		t.Fatalf("job status = %q, want delayed for retry", st.Status)
	}
	if !strings.Contains(st.FailedReason, "1 of 3 segments failed") {
		t.Errorf("failed reason = %q, want aggregate count", st.FailedReason)
	}
	if st.NextRunAt == nil {
		t.Fatal("delayed job has no next_run_at")
	}

	// The retry attempt only sees the failed segment.
	retried := 0
	counting := stubTranslator(func(ctx context.Context, req translator.Request) (*domain.Segment, error) {
		retried++
		if req.SegmentID != failedID {
			t.Errorf("retry dispatched segment %d, want only %d", req.SegmentID, failedID)
		}
		return okTranslator(e)(ctx, req)
	})
	e.claimAndExecute(t, st.NextRunAt.Add(time.Second), e.execDeps(counting))
	if retried != 1 {
		t.Errorf("retry dispatched %d segments, want 1", retried)
	}
	st, _ = e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobCompleted {
		t.Errorf("job status after retry = %q, want completed", st.Status)
	}
	file, _ := e.files.Get(ctx, fileID)
	if file.Status != domain.FileTranslated {
		t.Errorf("file status = %q, want TRANSLATED after retry", file.Status)
	}
}

func TestExecute_ExhaustedRetriesFail(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 1)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))
	deps := e.execDeps(failingTranslator(&domain.ProviderError{Provider: "openai", Msg: "down"}))

	now := time.Now()
	for attempt := 1; attempt <= 3; attempt++ {
		e.claimAndExecute(t, now.Add(time.Duration(attempt)*time.Minute), deps)
		st, _ := e.svc.GetStatus(ctx, jobID)
		if attempt < 3 {
			if st.Status != domain.JobDelayed {
				t.Fatalf("attempt %d: status = %q, want delayed", attempt, st.Status)
			}
		} else if st.Status != domain.JobFailed {
			t.Fatalf("attempt %d: status = %q, want failed after exhaustion", attempt, st.Status)
		}
		if st.Attempts != attempt {
			t.Errorf("attempt %d: attempts = %d", attempt, st.Attempts)
		}
	}
}

func TestExecute_ValidationFailureIsNotRetried(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 1)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))
	e.claimAndExecute(t, time.Now(), e.execDeps(failingTranslator(domain.Validationf("language pair missing"))))
	st, _ := e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobFailed {
		t.Errorf("status = %q, want failed permanently on first attempt", st.Status)
	}
	if st.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", st.Attempts)
	}
}

func TestExecute_ActiveJobCancelled(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 3)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))

	// The first segment triggers Cancel mid-run. The in-flight segment must
	// complete and persist; dispatch stops before the second one.
	dispatched := 0
	var firstSegID int64
	cancelling := stubTranslator(func(sctx context.Context, req translator.Request) (*domain.Segment, error) {
		dispatched++
		if dispatched == 1 {
			firstSegID = req.SegmentID
			if err := e.svc.Cancel(context.Background(), jobID); err != nil {
				t.Errorf("cancel: %v", err)
			}
			if sctx.Err() != nil {
				t.Errorf("segment context cancelled mid-flight: %v", sctx.Err())
			}
		}
		return okTranslator(e)(sctx, req)
	})
	e.claimAndExecute(t, time.Now(), e.execDeps(cancelling))

	if dispatched != 1 {
		t.Errorf("dispatched = %d segments after cancel, want 1", dispatched)
	}
	st, _ := e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobCancelled {
		t.Errorf("status = %q, want cancelled", st.Status)
	}
	seg, _ := e.segments.Get(ctx, firstSegID)
	if seg.Status != domain.SegmentTranslated || seg.Translation == nil || *seg.Translation != "T:"+seg.SourceText {
		t.Errorf("in-flight segment status = %q, want completed and persisted", seg.Status)
	}
	pending, _ := e.segments.ListByFileStatus(ctx, fileID, []string{domain.SegmentPending})
	if len(pending) != 2 {
		t.Errorf("pending segments = %d, want 2 untouched after cancel", len(pending))
	}
}

func TestExecute_CancelFromAnotherProcess(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 3)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))

	// A second service over the same jobs table stands in for a separate
	// process: its in-memory cancel registry has never seen this job, so
	// only the durable row flip can reach the worker.
	other := NewService(e.jobs, DefaultRetryPolicy(), discardLogger())
	dispatched := 0
	cancelling := stubTranslator(func(sctx context.Context, req translator.Request) (*domain.Segment, error) {
		dispatched++
		if dispatched == 1 {
			if err := other.Cancel(context.Background(), jobID); err != nil {
				t.Errorf("cancel: %v", err)
			}
		}
		return okTranslator(e)(sctx, req)
	})
	e.claimAndExecute(t, time.Now(), e.execDeps(cancelling))

	if dispatched != 1 {
		t.Errorf("dispatched = %d segments after cross-process cancel, want 1", dispatched)
	}
	st, _ := e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobCancelled {
		t.Errorf("status = %q, want cancelled", st.Status)
	}
}

func TestExecute_JobLogsRecorded(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	fileID := e.seedFile(t, domain.FileTranslating, 1)
	ctx := context.Background()
	jobID, _ := e.svc.SubmitFileJob(ctx, submitParams(fileID))
	e.claimAndExecute(t, time.Now(), e.execDeps(okTranslator(e)))
	logs, err := e.jobs.ListLogs(ctx, jobID, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) < 2 {
		t.Fatalf("logs = %d, want at least start and completion", len(logs))
	}
	last := logs[len(logs)-1]
	if last.Message != "completed" {
		t.Errorf("last log = %q, want completed", last.Message)
	}
}

// ---------------------------------------------------------------------------
// project job execution
// ---------------------------------------------------------------------------

func TestExecute_ProjectJobSpansFiles(t *testing.T) {
	e := newEnv(t, DefaultRetryPolicy())
	ctx := context.Background()
	p := &domain.Project{Name: "multi"}
	if err := e.projects.Create(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	var fileIDs []int64
	for _, name := range []string{"a.txt", "b.txt"} {
		f := &domain.File{ProjectID: p.ID, Name: name, Status: domain.FileTranslating, SegmentCount: 2, SourceLang: "en", TargetLang: "de"}
		if err := e.files.Create(ctx, f); err != nil {
			t.Fatalf("create file: %v", err)
		}
		segs := []*domain.Segment{
			{FileID: f.ID, Index: 0, SourceText: "One"},
			{FileID: f.ID, Index: 1, SourceText: "Two"},
		}
		if err := e.segments.InsertBatch(ctx, segs); err != nil {
			t.Fatalf("insert segments: %v", err)
		}
		fileIDs = append(fileIDs, f.ID)
	}
	jobID, err := e.svc.SubmitProjectJob(ctx, ports.SubmitParams{ProjectID: p.ID, AIConfigID: 5, SubmittedBy: "tester"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.claimAndExecute(t, time.Now(), e.execDeps(okTranslator(e)))

	st, _ := e.svc.GetStatus(ctx, jobID)
	if st.Status != domain.JobCompleted {
		t.Fatalf("job status = %q, want completed", st.Status)
	}
	if st.Progress != 4 || st.Total != 4 {
		t.Errorf("progress = %d/%d, want 4/4 across both files", st.Progress, st.Total)
	}
	for _, id := range fileIDs {
		f, _ := e.files.Get(ctx, id)
		if f.Status != domain.FileTranslated {
			t.Errorf("file %d status = %q, want TRANSLATED", id, f.Status)
		}
	}
}
