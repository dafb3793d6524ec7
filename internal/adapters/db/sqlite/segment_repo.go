package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/Jjjmaes/AIT-sub000/internal/domain"
)

type SegmentRepo struct{ *Repo }

func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{NewRepo(db)} }

var segmentCols = []string{
	"id", "file_id", "idx", "source_text", "translation", "status",
	"ai_model", "prompt_template_id", "token_count", "processing_time_ms",
	"error", "created_at", "updated_at", "completed_at",
}

func (r *SegmentRepo) Get(ctx context.Context, id int64) (*domain.Segment, error) {
	q := r.SQ.Select(segmentCols...).From("segments").Where(sq.Eq{"id": id}).Limit(1)
	sqlStr, args, _ := q.ToSql()
	return scanSegment(r.DB.QueryRowContext(ctx, sqlStr, args...))
}

func (r *SegmentRepo) InsertBatch(ctx context.Context, segs []*domain.Segment) error {
	if len(segs) == 0 {
		return nil
	}
	now := nowUTC()
	return WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, s := range segs {
			status := s.Status
			if status == "" {
				status = domain.SegmentPending
			}
			q := r.SQ.Insert("segments").
				Columns("file_id", "idx", "source_text", "status", "created_at", "updated_at").
				Values(s.FileID, s.Index, s.SourceText, status, now, now)
			sqlStr, args, _ := q.ToSql()
			res, err := tx.ExecContext(ctx, sqlStr, args...)
			if err != nil {
				return err
			}
			s.ID, _ = res.LastInsertId()
		}
		return nil
	})
}

func (r *SegmentRepo) ListByFileStatus(ctx context.Context, fileID int64, statuses []string) ([]*domain.Segment, error) {
	q := r.SQ.Select(segmentCols...).From("segments").Where(sq.Eq{"file_id": fileID})
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statuses})
	}
	q = q.OrderBy("idx")
	sqlStr, args, _ := q.ToSql()
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) CountByFileStatus(ctx context.Context, fileID int64, statuses []string) (int, error) {
	q := r.SQ.Select("COUNT(*)").From("segments").Where(sq.Eq{"file_id": fileID})
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statuses})
	}
	sqlStr, args, _ := q.ToSql()
	var n int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ClaimForTranslation is the compare-and-swap that keeps two workers from
// both moving the same segment out of PENDING.
func (r *SegmentRepo) ClaimForTranslation(ctx context.Context, id int64) (bool, error) {
	q := r.SQ.Update("segments").
		Set("status", domain.SegmentTranslating).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id, "status": domain.RetryableSegmentStatuses})
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *SegmentRepo) MarkTranslatedTM(ctx context.Context, id int64, translation string) (bool, error) {
	now := nowUTC()
	q := r.SQ.Update("segments").
		Set("translation", translation).
		Set("status", domain.SegmentTranslatedTM).
		Set("ai_model", nil).
		Set("token_count", 0).
		Set("processing_time_ms", 0).
		Set("error", nil).
		Set("updated_at", now).
		Set("completed_at", now).
		Where(sq.Eq{"id": id, "status": domain.RetryableSegmentStatuses})
	sqlStr, args, _ := q.ToSql()
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *SegmentRepo) MarkTranslated(ctx context.Context, id int64, translation string, meta domain.TranslationMeta) error {
	now := nowUTC()
	q := r.SQ.Update("segments").
		Set("translation", translation).
		Set("status", domain.SegmentTranslated).
		Set("ai_model", meta.AIModel).
		Set("prompt_template_id", meta.PromptTemplateID).
		Set("token_count", meta.TokenCount).
		Set("processing_time_ms", meta.ProcessingTimeMs).
		Set("error", nil).
		Set("updated_at", now).
		Set("completed_at", now).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SegmentRepo) MarkError(ctx context.Context, id int64, msg string) error {
	q := r.SQ.Update("segments").
		Set("status", domain.SegmentError).
		Set("error", msg).
		Set("updated_at", nowUTC()).
		Where(sq.Eq{"id": id})
	sqlStr, args, _ := q.ToSql()
	_, err := r.DB.ExecContext(ctx, sqlStr, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (*domain.Segment, error) {
	var s domain.Segment
	var translation, aiModel, errMsg, completed sql.NullString
	var tplID sql.NullInt64
	var created, updated string
	err := row.Scan(&s.ID, &s.FileID, &s.Index, &s.SourceText, &translation, &s.Status,
		&aiModel, &tplID, &s.Meta.TokenCount, &s.Meta.ProcessingTimeMs,
		&errMsg, &created, &updated, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if translation.Valid {
		v := translation.String
		s.Translation = &v
	}
	if aiModel.Valid {
		s.Meta.AIModel = aiModel.String
	}
	if tplID.Valid {
		v := tplID.Int64
		s.Meta.PromptTemplateID = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		s.Error = &v
	}
	s.CreatedAt = parseTime(created)
	s.UpdatedAt = parseTime(updated)
	s.CompletedAt = parseTimePtr(completed)
	return &s, nil
}
