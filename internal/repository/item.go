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

// SourceItemRepository handles database operations for source items.
type SourceItemRepository struct {
	db *sqlx.DB
}

// NewSourceItemRepository creates a new source item repository.
func NewSourceItemRepository(db *sqlx.DB) *SourceItemRepository {
	return &SourceItemRepository{db: db}
}

// GetByID retrieves a source item by its ID.
func (r *SourceItemRepository) GetByID(ctx context.Context, id int64) (*models.SourceItem, error) {
	var item models.SourceItem
	query := `
		SELECT id, title, url, description, source_tag, collected_at, deep_status
		FROM source_items
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &item, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get source item: %w", err)
	}

	return &item, nil
}

// Save upserts one search result keyed on url. A collision refreshes
// title, description, and collected_at; it never duplicates the row.
// Returns the row id and whether a new row was inserted.
func (r *SourceItemRepository) Save(ctx context.Context, res *models.SearchResult) (int64, bool, error) {
	query := `
		INSERT INTO source_items (title, url, description, source_tag)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			collected_at = NOW()
		RETURNING id, (xmax = 0) AS is_insert
	`

	var (
		id       int64
		isInsert bool
	)
	err := r.db.QueryRowContext(ctx, query, res.Title, res.URL, res.Description, res.SourceTag).
		Scan(&id, &isInsert)
	if err != nil {
		return 0, false, fmt.Errorf("upsert source item: %w", err)
	}

	return id, isInsert, nil
}

// List returns items matching an optional keyword (title, description,
// or url) with pagination, newest first, plus the total match count.
// Each row carries the id of its deep record when one exists.
func (r *SourceItemRepository) List(ctx context.Context, keyword string, page, perPage int) ([]models.SourceItem, int, error) {
	where := ""
	args := []any{}
	if keyword != "" {
		where = `WHERE s.title ILIKE $1 OR s.description ILIKE $1 OR s.url ILIKE $1`
		args = append(args, "%"+keyword+"%")
	}

	countQuery := `SELECT COUNT(*) FROM source_items s ` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count source items: %w", err)
	}

	limitPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT s.id, s.title, s.url, s.description, s.source_tag, s.collected_at,
		       s.deep_status, d.id AS deep_record_id
		FROM source_items s
		LEFT JOIN deep_records d ON d.source_id = s.id
		%s
		ORDER BY s.collected_at DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, limitPos+1)
	args = append(args, perPage, (page-1)*perPage)

	items := make([]models.SourceItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list source items: %w", err)
	}

	return items, total, nil
}

// SetDeepStatus persists a deep-crawl status transition immediately so
// external observers see progress even if the process dies mid-item.
func (r *SourceItemRepository) SetDeepStatus(ctx context.Context, id int64, status models.DeepStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE source_items SET deep_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set deep status: %w", err)
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

// Delete removes a source item (its deep record cascades).
func (r *SourceItemRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM source_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source item: %w", err)
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

// BatchDelete removes multiple source items.
func (r *SourceItemRepository) BatchDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM source_items WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("batch delete source items: %w", err)
	}

	return nil
}
