package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/models"
)

// AnalyticsRepository serves the dashboard aggregates over collected
// items and deep records.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Overview returns collection volume by period plus the per-engine
// breakdown.
func (r *AnalyticsRepository) Overview(ctx context.Context) (*models.ScreenOverview, error) {
	var overview models.ScreenOverview
	query := `
		SELECT
			COUNT(*) FILTER (WHERE collected_at >= date_trunc('day', now()))   AS today,
			COUNT(*) FILTER (WHERE collected_at >= date_trunc('week', now()))  AS week,
			COUNT(*) FILTER (WHERE collected_at >= date_trunc('month', now())) AS month,
			COUNT(*)                                                           AS total,
			COUNT(*) FILTER (WHERE deep_status = $1)                           AS deep
		FROM source_items
	`

	if err := r.db.GetContext(ctx, &overview, query, models.DeepSucceeded); err != nil {
		return nil, fmt.Errorf("overview counts: %w", err)
	}

	sources := make([]models.SourceCount, 0)
	sourceQuery := `
		SELECT source_tag, COUNT(*) AS count
		FROM source_items
		GROUP BY source_tag
		ORDER BY count DESC
	`
	if err := r.db.SelectContext(ctx, &sources, sourceQuery); err != nil {
		return nil, fmt.Errorf("overview sources: %w", err)
	}
	overview.Sources = sources

	return &overview, nil
}

// DailyTrend returns per-day collection counts over the given window.
func (r *AnalyticsRepository) DailyTrend(ctx context.Context, days int) ([]models.TrendPoint, error) {
	points := make([]models.TrendPoint, 0)
	query := `
		SELECT to_char(date_trunc('day', collected_at), 'YYYY-MM-DD') AS date,
		       COUNT(*) AS count
		FROM source_items
		WHERE collected_at >= date_trunc('day', now()) - make_interval(days => $1)
		GROUP BY 1
		ORDER BY 1
	`

	if err := r.db.SelectContext(ctx, &points, query, days); err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	return points, nil
}

// RecentTitles returns the newest item titles within the window, for
// keyword ranking.
func (r *AnalyticsRepository) RecentTitles(ctx context.Context, days, limit int) ([]string, error) {
	titles := make([]string, 0)
	query := `
		SELECT title
		FROM source_items
		WHERE collected_at >= now() - make_interval(days => $1)
		ORDER BY collected_at DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &titles, query, days, limit); err != nil {
		return nil, fmt.Errorf("recent titles: %w", err)
	}
	return titles, nil
}

// DeepRank returns the newest successfully deep-crawled items with
// their summaries.
func (r *AnalyticsRepository) DeepRank(ctx context.Context, limit int) ([]models.DeepRankEntry, error) {
	entries := make([]models.DeepRankEntry, 0)
	query := `
		SELECT s.title, s.source_tag, d.summary, s.collected_at
		FROM source_items s
		JOIN deep_records d ON d.source_id = s.id
		WHERE s.deep_status = $1
		ORDER BY s.collected_at DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &entries, query, models.DeepSucceeded, limit); err != nil {
		return nil, fmt.Errorf("deep rank: %w", err)
	}
	return entries, nil
}
