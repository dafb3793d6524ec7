package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type ProjectRepo struct{ *Repo }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{NewRepo(db)} }

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	now := nowUTC()
	q := r.SQ.Insert("projects").
		Columns("name", "domain", "owner_id", "created_at", "updated_at").
		Values(p.Name, p.Domain, p.OwnerID, now, now)
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (r *ProjectRepo) Get(ctx context.Context, id int64) (*domain.Project, error) {
	q := r.SQ.Select("id", "name", "domain", "owner_id", "created_at", "updated_at").
		From("projects").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	var p domain.Project
	var created, updated string
	err := r.DB.QueryRowContext(ctx, sqlStr, args...).
		Scan(&p.ID, &p.Name, &p.Domain, &p.OwnerID, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

type TerminologyRepo struct{ *Repo }

func NewTerminologyRepo(db *sql.DB) *TerminologyRepo { return &TerminologyRepo{NewRepo(db)} }

func (r *TerminologyRepo) Create(ctx context.Context, t *domain.Terminology) error {
	terms, err := json.Marshal(t.Terms)
	if err != nil {
		return err
	}
	q := r.SQ.Insert("terminologies").
		Columns("name", "terms_json", "created_at").
		Values(t.Name, string(terms), nowUTC())
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

func (r *TerminologyRepo) Get(ctx context.Context, id int64) (*domain.Terminology, error) {
	q := r.SQ.Select("id", "name", "terms_json", "created_at").
		From("terminologies").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	var t domain.Terminology
	var terms, created string
	err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&t.ID, &t.Name, &terms, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(terms), &t.Terms); err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(created)
	return &t, nil
}
