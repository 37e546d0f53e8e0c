// Package ingest stores scraped search results, deduplicating on URL
// and maintaining the ingestion counters.
package ingest

import (
	"context"
	"fmt"

	"github.com/jonesrussell/webinsight/internal/events"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

// Service ingests search results into the item store.
type Service struct {
	items     *repository.SourceItemRepository
	stats     *repository.StatsRepository
	publisher *events.Publisher
	logger    logger.Logger
}

// NewService creates an ingest service. publisher may be nil.
func NewService(
	items *repository.SourceItemRepository,
	stats *repository.StatsRepository,
	publisher *events.Publisher,
	log logger.Logger,
) *Service {
	return &Service{
		items:     items,
		stats:     stats,
		publisher: publisher,
		logger:    log,
	}
}

// Summary reports one ingestion batch.
type Summary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Ingest stores a batch of results. Re-ingested URLs refresh the
// existing row and never inflate the total_items counter; only
// genuinely new rows count and fire an item.ingested event.
func (s *Service) Ingest(ctx context.Context, results []models.SearchResult) (*Summary, error) {
	summary := &Summary{}

	for i := range results {
		res := &results[i]
		if res.URL == "" {
			s.logger.Warn("skipping result without url",
				logger.String("title", res.Title))
			continue
		}

		id, isNew, err := s.items.Save(ctx, res)
		if err != nil {
			return summary, fmt.Errorf("ingest %q: %w", res.URL, err)
		}

		if !isNew {
			summary.Updated++
			continue
		}
		summary.Added++

		s.publisher.PublishAsync(events.Event{
			EventType: events.ItemIngested,
			Payload: events.ItemIngestedPayload{
				ItemID:    id,
				URL:       res.URL,
				SourceTag: res.SourceTag,
			},
		})
	}

	if summary.Added > 0 {
		if err := s.stats.Increment(ctx, repository.TotalItemsMetric, int64(summary.Added)); err != nil {
			// Counter drift is recoverable; the batch itself landed.
			s.logger.Error("failed to bump ingest counter", logger.Error(err))
		}
	}

	s.logger.Info("ingested search results",
		logger.Int("received", len(results)),
		logger.Int("added", summary.Added),
		logger.Int("updated", summary.Updated))

	return summary, nil
}
