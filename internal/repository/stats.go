package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/models"
)

// TotalItemsMetric counts genuinely new ingested source items.
const TotalItemsMetric = "total_items"

// StatsRepository maintains derived aggregate counters.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Increment adds delta to a counter, creating it when missing.
func (r *StatsRepository) Increment(ctx context.Context, metric string, delta int64) error {
	query := `
		INSERT INTO stat_counters (metric_name, metric_value)
		VALUES ($1, $2)
		ON CONFLICT (metric_name) DO UPDATE SET
			metric_value = stat_counters.metric_value + EXCLUDED.metric_value,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, metric, delta); err != nil {
		return fmt.Errorf("increment counter %s: %w", metric, err)
	}

	return nil
}

// List returns all counters.
func (r *StatsRepository) List(ctx context.Context) ([]models.StatCounter, error) {
	counters := make([]models.StatCounter, 0)
	query := `
		SELECT id, metric_name, metric_value, updated_at
		FROM stat_counters
		ORDER BY metric_name
	`

	if err := r.db.SelectContext(ctx, &counters, query); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}

	return counters, nil
}
