package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type TMRepo struct{ *Repo }

func NewTMRepo(db *sql.DB) *TMRepo { return &TMRepo{NewRepo(db)} }

var tmCols = []string{
	"id", "source_lang", "target_lang", "source_text", "target_text",
	"project_id", "usage_count", "last_used_at", "created_by", "created_at", "updated_at",
}

func (r *TMRepo) Find(ctx context.Context, sourceLang, targetLang, sourceText string, projectID *int64) (*domain.TMEntry, error) {
	q := r.SQ.Select(tmCols...).From("tm_entries").
		Where(sq.Eq{"source_lang": sourceLang, "target_lang": targetLang, "source_text": sourceText})
	if projectID != nil {
		q = q.Where(sq.Eq{"project_id": *projectID})
	} else {
		q = q.Where("project_id IS NULL")
	}
	q = q.Limit(1)
	sqlStr, args, _ := q.ToSql()
	return scanTMEntry(r.DB.QueryRowContext(ctx, sqlStr, args...))
}

// ListByLangPair returns project-scoped entries plus globals for the pair.
func (r *TMRepo) ListByLangPair(ctx context.Context, sourceLang, targetLang string, projectID *int64) ([]*domain.TMEntry, error) {
	q := r.SQ.Select(tmCols...).From("tm_entries").
		Where(sq.Eq{"source_lang": sourceLang, "target_lang": targetLang})
	if projectID != nil {
		q = q.Where(sq.Or{sq.Eq{"project_id": *projectID}, sq.Expr("project_id IS NULL")})
	} else {
		q = q.Where("project_id IS NULL")
	}
	q = q.OrderBy("id")
	sqlStr, args, _ := q.ToSql()
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.TMEntry
	for rows.Next() {
		e, err := scanTMEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *TMRepo) Insert(ctx context.Context, e *domain.TMEntry) error {
	now := nowUTC()
	if e.UsageCount == 0 {
		e.UsageCount = 1
	}
	q := r.SQ.Insert("tm_entries").
		Columns("source_lang", "target_lang", "source_text", "target_text", "project_id",
			"usage_count", "last_used_at", "created_by", "created_at", "updated_at").
		Values(e.SourceLang, e.TargetLang, e.SourceText, e.TargetText, e.ProjectID,
			e.UsageCount, now, e.CreatedBy, now, now)
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func (r *TMRepo) UpdateTarget(ctx context.Context, id int64, targetText string) error {
	now := nowUTC()
	q := r.SQ.Update("tm_entries").
		Set("target_text", targetText).
		Set("usage_count", sq.Expr("usage_count + 1")).
		Set("last_used_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *TMRepo) BumpUsage(ctx context.Context, id int64) error {
	now := nowUTC()
	q := r.SQ.Update("tm_entries").
		Set("usage_count", sq.Expr("usage_count + 1")).
		Set("last_used_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func scanTMEntry(row rowScanner) (*domain.TMEntry, error) {
	var e domain.TMEntry
	var project sql.NullInt64
	var lastUsed, created, updated string
	err := row.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceText, &e.TargetText,
		&project, &e.UsageCount, &lastUsed, &e.CreatedBy, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if project.Valid {
		v := project.Int64
		e.ProjectID = &v
	}
	e.LastUsedAt = parseTime(lastUsed)
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}
