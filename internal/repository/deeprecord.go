package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/webinsight/internal/models"
)

// DeepRecordRepository handles database operations for deep records.
type DeepRecordRepository struct {
	db *sqlx.DB
}

// NewDeepRecordRepository creates a new deep record repository.
func NewDeepRecordRepository(db *sqlx.DB) *DeepRecordRepository {
	return &DeepRecordRepository{db: db}
}

// Upsert inserts or replaces the deep record for a source item, keyed
// on source_id. Replacing refreshes collected_at, so replaying the same
// extraction updates the row in place rather than adding a second one.
func (r *DeepRecordRepository) Upsert(ctx context.Context, rec *models.DeepRecord) error {
	query := `
		INSERT INTO deep_records (source_id, url, title, content, summary, structured_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			summary = EXCLUDED.summary,
			structured_data = EXCLUDED.structured_data,
			collected_at = NOW()
		RETURNING id, collected_at
	`

	err := r.db.QueryRowContext(ctx, query,
		rec.SourceID,
		rec.URL,
		rec.Title,
		rec.Content,
		rec.Summary,
		rec.StructuredData,
	).Scan(&rec.ID, &rec.CollectedAt)
	if err != nil {
		return fmt.Errorf("upsert deep record: %w", err)
	}

	return nil
}

// List returns deep records matching an optional keyword with
// pagination, newest first, plus the total match count.
func (r *DeepRecordRepository) List(ctx context.Context, keyword string, page, perPage int) ([]models.DeepRecord, int, error) {
	where := ""
	args := []any{}
	if keyword != "" {
		where = `WHERE d.title ILIKE $1 OR d.content ILIKE $1 OR d.url ILIKE $1`
		args = append(args, "%"+keyword+"%")
	}

	countQuery := `SELECT COUNT(*) FROM deep_records d ` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count deep records: %w", err)
	}

	limitPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT d.id, d.source_id, d.url, d.title, d.content, d.summary,
		       d.structured_data, d.collected_at,
		       COALESCE(s.title, '') AS source_title
		FROM deep_records d
		LEFT JOIN source_items s ON s.id = d.source_id
		%s
		ORDER BY d.collected_at DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, limitPos+1)
	args = append(args, perPage, (page-1)*perPage)

	records := make([]models.DeepRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list deep records: %w", err)
	}

	return records, total, nil
}

// Update edits the mutable fields of a deep record.
func (r *DeepRecordRepository) Update(ctx context.Context, rec *models.DeepRecord) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deep_records
		SET title = $2, content = $3, summary = $4, structured_data = $5
		WHERE id = $1
	`, rec.ID, rec.Title, rec.Content, rec.Summary, rec.StructuredData)
	if err != nil {
		return fmt.Errorf("update deep record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a deep record and resets its source item's deep_status
// to not-started, in one transaction, so the item is eligible for a
// fresh deep crawl.
func (r *DeepRecordRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sourceID int64
	err = tx.GetContext(ctx, &sourceID,
		`DELETE FROM deep_records WHERE id = $1 RETURNING source_id`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete deep record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE source_items SET deep_status = $1 WHERE id = $2`,
		models.DeepNotStarted, sourceID)
	if err != nil {
		return fmt.Errorf("reset source item status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// BatchDelete removes multiple deep records and resets every affected
// source item's deep_status to not-started.
func (r *DeepRecordRepository) BatchDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sourceIDs []int64
	err = tx.SelectContext(ctx, &sourceIDs,
		`DELETE FROM deep_records WHERE id = ANY($1) RETURNING source_id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("batch delete deep records: %w", err)
	}

	if len(sourceIDs) > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE source_items SET deep_status = $1 WHERE id = ANY($2)`,
			models.DeepNotStarted, pq.Array(sourceIDs))
		if err != nil {
			return fmt.Errorf("reset source item statuses: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
