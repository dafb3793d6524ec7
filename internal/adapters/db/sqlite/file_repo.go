package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type FileRepo struct{ *Repo }

func NewFileRepo(db *sql.DB) *FileRepo { return &FileRepo{NewRepo(db)} }

var fileCols = []string{
	"id", "project_id", "name", "status", "segment_count",
	"source_lang", "target_lang", "error_details", "created_at", "updated_at",
}

func (r *FileRepo) Create(ctx context.Context, f *domain.File) error {
	now := nowUTC()
	status := f.Status
	if status == "" {
		status = domain.FilePending
	}
	q := r.SQ.Insert("files").
		Columns("project_id", "name", "status", "segment_count", "source_lang", "target_lang", "error_details", "created_at", "updated_at").
		Values(f.ProjectID, f.Name, status, f.SegmentCount, f.SourceLang, f.TargetLang, f.ErrorDetails, now, now)
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	f.ID, _ = res.LastInsertId()
	f.Status = status
	return nil
}

func (r *FileRepo) Get(ctx context.Context, id int64) (*domain.File, error) {
	q := r.SQ.Select(fileCols...).From("files").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	return scanFile(r.DB.QueryRowContext(ctx, sqlStr, args...))
}

func (r *FileRepo) ListByProject(ctx context.Context, projectID int64) ([]*domain.File, error) {
	return r.list(ctx, sq.Eq{"project_id": projectID})
}

func (r *FileRepo) ListByProjectStatus(ctx context.Context, projectID int64, status string) ([]*domain.File, error) {
	return r.list(ctx, sq.Eq{"project_id": projectID, "status": status})
}

func (r *FileRepo) list(ctx context.Context, where sq.Eq) ([]*domain.File, error) {
	q := r.SQ.Select(fileCols...).From("files").Where(where).OrderBy("id")
	sqlStr, args, _ := q.ToSql()
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FileRepo) UpdateStatus(ctx context.Context, id int64, status, errorDetails string) error {
	q := r.SQ.Update("files").
		Set("status", status).
		Set("error_details", errorDetails).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FileRepo) BulkUpdateStatus(ctx context.Context, ids []int64, status string) error {
	if len(ids) == 0 {
		return nil
	}
	q := r.SQ.Update("files").
		Set("status", status).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": ids})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func scanFile(row rowScanner) (*domain.File, error) {
	var f domain.File
	var created, updated string
	err := row.Scan(&f.ID, &f.ProjectID, &f.Name, &f.Status, &f.SegmentCount,
		&f.SourceLang, &f.TargetLang, &f.ErrorDetails, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(created)
	f.UpdatedAt = parseTime(updated)
	return &f, nil
}
