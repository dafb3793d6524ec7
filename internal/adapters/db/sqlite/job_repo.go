package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type JobRepo struct{ *Repo }

func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{NewRepo(db)} }

var jobCols = []string{
	"id", "type", "project_id", "file_id", "ai_config_id", "prompt_template_id",
	"options_json", "submitted_by", "status", "attempts", "last_error",
	"progress", "total", "lease_token", "next_run_at", "created_at", "updated_at",
}

func (r *JobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	q := r.SQ.Select(jobCols...).From("jobs").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	return scanJob(r.DB.QueryRowContext(ctx, sqlStr, args...))
}

func (r *JobRepo) Insert(ctx context.Context, j *domain.Job) error {
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return err
	}
	now := nowUTC()
	q := r.SQ.Insert("jobs").
		Columns("id", "type", "project_id", "file_id", "ai_config_id", "prompt_template_id",
			"options_json", "submitted_by", "status", "attempts", "last_error",
			"progress", "total", "lease_token", "next_run_at", "created_at", "updated_at").
		Values(j.ID, j.Type, j.ProjectID, j.FileID, j.AIConfigID, j.PromptTemplateID,
			string(opts), j.SubmittedBy, j.Status, 0, "", 0, j.Total, "", nil, now, now)
	sqlStr, args, _ := q.ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Reset rearms a terminal row for a fresh submission under the same identity.
func (r *JobRepo) Reset(ctx context.Context, j *domain.Job) error {
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return err
	}
	q := r.SQ.Update("jobs").
		Set("ai_config_id", j.AIConfigID).
		Set("prompt_template_id", j.PromptTemplateID).
		Set("options_json", string(opts)).
		Set("submitted_by", j.SubmittedBy).
		Set("status", domain.JobWaiting).
		Set("attempts", 0).
		Set("last_error", "").
		Set("progress", 0).
		Set("total", j.Total).
		Set("lease_token", "").
		Set("next_run_at", nil).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": j.ID})
	sqlStr, args, _ := q.ToSql()
	_, err = r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

// Claim leases the oldest runnable job inside a transaction: the select and
// the conditional update share the same snapshot, so two pollers cannot
// both activate one row.
func (r *JobRepo) Claim(ctx context.Context, now time.Time, leaseToken string) (*domain.Job, error) {
	nowStr := now.UTC().Format(time.RFC3339)
	var claimed *domain.Job
	err := WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		runnable := sq.Or{
			sq.Eq{"status": domain.JobWaiting},
			sq.And{sq.Eq{"status": domain.JobDelayed}, sq.LtOrEq{"next_run_at": nowStr}},
		}
		sel := r.SQ.Select(jobCols...).From("jobs").Where(runnable).OrderBy("created_at").Limit(1)
		sqlStr, args, _ := sel.ToSql()
		j, err := scanJob(tx.QueryRowContext(ctx, sqlStr, args...))
		if err != nil || j == nil {
			return err
		}
		upd := r.SQ.Update("jobs").
			Set("status", domain.JobActive).
			Set("attempts", j.Attempts+1).
			Set("lease_token", leaseToken).
			Set("next_run_at", nil).
			Set("updated_at", nowStr).
			Where(sq.Eq{"id": j.ID}).
			Where(sq.Eq{"status": j.Status})
		sqlStr, args, _ = upd.ToSql()
		res, err := tx.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil
		}
		j.Status = domain.JobActive
		j.Attempts++
		j.LeaseToken = leaseToken
		j.NextRunAt = nil
		claimed = j
		return nil
	})
	return claimed, err
}

func (r *JobRepo) MarkCompleted(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.JobCompleted, "")
}

func (r *JobRepo) MarkFailed(ctx context.Context, id, lastError string) error {
	return r.setStatus(ctx, id, domain.JobFailed, lastError)
}

func (r *JobRepo) MarkCancelled(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.JobCancelled, "")
}

func (r *JobRepo) setStatus(ctx context.Context, id, status, lastError string) error {
	q := r.SQ.Update("jobs").
		Set("status", status).
		Set("lease_token", "").
		Set("updated_at", nowUTC())
	if lastError != "" {
		q = q.Set("last_error", lastError)
	}
	q = q.Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *JobRepo) Delay(ctx context.Context, id string, until time.Time, lastError string) error {
	q := r.SQ.Update("jobs").
		Set("status", domain.JobDelayed).
		Set("next_run_at", until.UTC().Format(time.RFC3339)).
		Set("last_error", lastError).
		Set("lease_token", "").
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

// CancelPending cancels a job that is not currently held by a worker.
func (r *JobRepo) CancelPending(ctx context.Context, id string) (bool, error) {
	q := r.SQ.Update("jobs").
		Set("status", domain.JobCancelled).
		Set("next_run_at", nil).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id, "status": []string{domain.JobWaiting, domain.JobDelayed}})
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// CancelActive cancels a job a worker currently holds. The flip is durable,
// so the executing worker sees it at the next dispatch boundary even when it
// lives in another process.
func (r *JobRepo) CancelActive(ctx context.Context, id string) (bool, error) {
	q := r.SQ.Update("jobs").
		Set("status", domain.JobCancelled).
		Set("lease_token", "").
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id, "status": domain.JobActive})
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *JobRepo) UpdateProgress(ctx context.Context, id string, done, total int) error {
	q := r.SQ.Update("jobs").
		Set("progress", done).
		Set("total", total).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *JobRepo) AddLog(ctx context.Context, l *domain.JobLog) error {
	q := r.SQ.Insert("job_logs").Columns("job_id", "ts", "level", "message").
		Values(l.JobID, nowUTC(), l.Level, l.Message)
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *JobRepo) ListLogs(ctx context.Context, jobID string, limit int) ([]*domain.JobLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.SQ.Select("id", "job_id", "ts", "level", "message").From("job_logs").
		Where(sq.Eq{"job_id": jobID}).OrderBy("id").Limit(uint64(limit))
	sqlStr, args, _ := q.ToSql()
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.JobLog
	for rows.Next() {
		var l domain.JobLog
		var ts string
		if err := rows.Scan(&l.ID, &l.JobID, &ts, &l.Level, &l.Message); err != nil {
			return nil, err
		}
		l.Time = parseTime(ts)
		out = append(out, &l)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var fileID, tplID sql.NullInt64
	var opts, created, updated string
	var nextRun sql.NullString
	err := row.Scan(&j.ID, &j.Type, &j.ProjectID, &fileID, &j.AIConfigID, &tplID,
		&opts, &j.SubmittedBy, &j.Status, &j.Attempts, &j.LastError,
		&j.Progress, &j.Total, &j.LeaseToken, &nextRun, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fileID.Valid {
		v := fileID.Int64
		j.FileID = &v
	}
	if tplID.Valid {
		v := tplID.Int64
		j.PromptTemplateID = &v
	}
	if err := json.Unmarshal([]byte(opts), &j.Options); err != nil {
		return nil, err
	}
	j.NextRunAt = parseTimePtr(nextRun)
	j.CreatedAt = parseTime(created)
	j.UpdatedAt = parseTime(updated)
	return &j, nil
}
