package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type ProviderConfigRepo struct{ *Repo }

func NewProviderConfigRepo(db *sql.DB) *ProviderConfigRepo { return &ProviderConfigRepo{NewRepo(db)} }

var providerCols = []string{
	"id", "provider_name", "name", "api_key", "models_json", "base_url",
	"temperature", "is_active", "created_at", "updated_at",
}

func (r *ProviderConfigRepo) Create(ctx context.Context, p *domain.ProviderConfig) error {
	models, err := json.Marshal(p.Models)
	if err != nil {
		return err
	}
	now := nowUTC()
	q := r.SQ.Insert("provider_configs").
		Columns("provider_name", "name", "api_key", "models_json", "base_url", "temperature", "is_active", "created_at", "updated_at").
		Values(p.ProviderName, p.Name, p.APIKey, string(models), p.BaseURL, p.Temperature, p.IsActive, now, now)
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (r *ProviderConfigRepo) Get(ctx context.Context, id int64) (*domain.ProviderConfig, error) {
	q := r.SQ.Select(providerCols...).From("provider_configs").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	return scanProviderConfig(r.DB.QueryRowContext(ctx, sqlStr, args...))
}

func (r *ProviderConfigRepo) List(ctx context.Context) ([]*domain.ProviderConfig, error) {
	q := r.SQ.Select(providerCols...).From("provider_configs").OrderBy("id")
	sqlStr, args, _ := q.ToSql()
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ProviderConfig
	for rows.Next() {
		p, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProviderConfig(row rowScanner) (*domain.ProviderConfig, error) {
	var p domain.ProviderConfig
	var models, created, updated string
	err := row.Scan(&p.ID, &p.ProviderName, &p.Name, &p.APIKey, &models, &p.BaseURL,
		&p.Temperature, &p.IsActive, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(models), &p.Models); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
