package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type TemplateRepo struct{ *Repo }

func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{NewRepo(db)} }

func (r *TemplateRepo) Create(ctx context.Context, t *domain.PromptTemplate) error {
	vars, err := json.Marshal(t.Variables)
	if err != nil {
		return err
	}
	q := r.SQ.Insert("prompt_templates").
		Columns("type", "name", "content", "variables_json", "is_active", "updated_at").
		Values(t.Type, t.Name, t.Content, string(vars), t.IsActive, nowUTC())
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

func (r *TemplateRepo) Get(ctx context.Context, id int64) (*domain.PromptTemplate, error) {
	q := r.SQ.Select("id", "type", "name", "content", "variables_json", "is_active", "updated_at").
		From("prompt_templates").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	var t domain.PromptTemplate
	var vars, updated string
	err := r.DB.QueryRowContext(ctx, sqlStr, args...).
		Scan(&t.ID, &t.Type, &t.Name, &t.Content, &vars, &t.IsActive, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(vars), &t.Variables); err != nil {
		return nil, err
	}
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}
