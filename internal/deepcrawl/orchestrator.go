// Package deepcrawl runs the fetch-extract-store pipeline over selected
// source items, streaming progress to the caller.
package deepcrawl

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/jonesrussell/webinsight/internal/events"
	"github.com/jonesrussell/webinsight/internal/fetcher"
	"github.com/jonesrussell/webinsight/internal/insight"
	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

// maxStoredContentRunes caps the page text persisted with a deep record.
const maxStoredContentRunes = 2000

// usageTaskLabel tags token usage rows written by deep crawls.
const usageTaskLabel = "deep_crawl"

// Orchestrator drives deep crawls: per item it fetches the page,
// extracts a structured insight, stores the deep record, and keeps the
// item's deep_status current at every transition.
type Orchestrator struct {
	items     *repository.SourceItemRepository
	records   *repository.DeepRecordRepository
	backends  *repository.ModelConfigRepository
	usage     *repository.TokenUsageRepository
	fetcher   *fetcher.Fetcher
	extractor *insight.Extractor
	publisher *events.Publisher
	logger    logger.Logger
}

// NewOrchestrator creates a deep-crawl orchestrator. publisher may be nil.
func NewOrchestrator(
	items *repository.SourceItemRepository,
	records *repository.DeepRecordRepository,
	backends *repository.ModelConfigRepository,
	usage *repository.TokenUsageRepository,
	f *fetcher.Fetcher,
	extractor *insight.Extractor,
	publisher *events.Publisher,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		items:     items,
		records:   records,
		backends:  backends,
		usage:     usage,
		fetcher:   f,
		extractor: extractor,
		publisher: publisher,
		logger:    log,
	}
}

// Run crawls the given items in order and streams progress events over
// an unbuffered channel, so production is paced by the consumer. Each
// item fails or succeeds independently; one bad page never aborts the
// run. If the consumer goes away mid-item, that item's status writes
// still complete before the run stops.
func (o *Orchestrator) Run(ctx context.Context, ids []int64, modelID int64) <-chan Event {
	ch := make(chan Event)

	go func() {
		defer close(ch)

		// Status writes outlive consumer disconnects.
		persistCtx := context.WithoutCancel(ctx)

		total := len(ids)
		success, fail := 0, 0

		backend, err := o.backends.GetActive(ctx, modelID)
		if err != nil {
			o.logger.Error("deep crawl has no usable model backend", logger.Error(err))
			o.send(ctx, ch, Event{Type: EventError, Data: ErrorData{Message: "no usable model backend configured"}})
			o.send(ctx, ch, Event{Type: EventCompleted, Data: CompletedData{Total: total}})
			return
		}

		for i, id := range ids {
			item, err := o.items.GetByID(ctx, id)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					o.logger.Error("failed to load item for deep crawl",
						logger.Int64("item_id", id), logger.Error(err))
				}
				// Unknown ids are skipped without an event.
				continue
			}

			alive := o.send(ctx, ch, Event{Type: EventProcessing, Data: ProcessingData{
				Current:  i + 1,
				Total:    total,
				Progress: (i + 1) * 100 / total,
				Title:    item.Title,
			}})

			if err := o.crawlOne(ctx, persistCtx, item, backend); err != nil {
				fail++
				o.logger.Warn("deep crawl item failed",
					logger.Int64("item_id", item.ID),
					logger.String("url", item.URL),
					logger.Error(err))
				alive = o.send(ctx, ch, Event{Type: EventError, Data: ErrorData{
					ItemID:  item.ID,
					Message: err.Error(),
				}}) && alive
			} else {
				success++
			}

			if !alive {
				// Consumer is gone; the item above is fully persisted.
				o.logger.Info("deep crawl consumer disconnected",
					logger.Int("processed", i+1), logger.Int("total", total))
				return
			}
		}

		o.send(ctx, ch, Event{Type: EventCompleted, Data: CompletedData{
			Success: success,
			Fail:    fail,
			Total:   total,
		}})

		o.publisher.PublishAsync(events.Event{
			EventType: events.DeepCrawlCompleted,
			Payload: events.DeepCrawlCompletedPayload{
				Requested: total,
				Succeeded: success,
				Failed:    fail,
			},
		})
	}()

	return ch
}

// crawlOne runs the full pipeline for a single item. The item's
// deep_status reaches a terminal value (succeeded or failed) on every
// path out of this function.
func (o *Orchestrator) crawlOne(ctx, persistCtx context.Context, item *models.SourceItem, backend *models.ModelConfig) error {
	if err := o.items.SetDeepStatus(persistCtx, item.ID, models.DeepInProgress); err != nil {
		return err
	}

	fail := func(cause error) error {
		if err := o.items.SetDeepStatus(persistCtx, item.ID, models.DeepFailed); err != nil {
			o.logger.Error("failed to persist failed status",
				logger.Int64("item_id", item.ID), logger.Error(err))
		}
		return cause
	}

	text, err := o.fetcher.FetchText(ctx, item.URL)
	if err != nil {
		return fail(err)
	}

	parsed, canonical, usage, err := o.extractor.Extract(ctx, backendFor(backend), text)
	o.logUsage(persistCtx, backend.ID, usage, text)
	if err != nil {
		return fail(err)
	}

	title := parsed.Title
	if title == "" {
		title = item.Title
	}
	record := &models.DeepRecord{
		SourceID:       item.ID,
		URL:            item.URL,
		Title:          title,
		Content:        truncateRunes(text, maxStoredContentRunes),
		Summary:        parsed.Summary,
		StructuredData: canonical,
	}
	if err := o.records.Upsert(persistCtx, record); err != nil {
		return fail(err)
	}

	if err := o.items.SetDeepStatus(persistCtx, item.ID, models.DeepSucceeded); err != nil {
		return err
	}
	return nil
}

// logUsage writes the token audit row, estimating when the backend
// omitted usage metadata.
func (o *Orchestrator) logUsage(ctx context.Context, modelID int64, usage *llm.Usage, promptText string) {
	rec := &models.TokenUsageRecord{ModelID: modelID, TaskLabel: usageTaskLabel}
	if usage != nil {
		rec.PromptTokens = usage.PromptTokens
		rec.CompletionTokens = usage.CompletionTokens
		rec.TotalTokens = usage.TotalTokens
	} else {
		rec.PromptTokens = estimateTokens(promptText)
	}

	if err := o.usage.Log(ctx, rec); err != nil {
		o.logger.Error("failed to log token usage", logger.Error(err))
	}
}

// send delivers an event unless the consumer disconnected. Returns
// false once the context is done.
func (o *Orchestrator) send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func backendFor(m *models.ModelConfig) llm.Backend {
	return llm.Backend{
		Endpoint:   m.Endpoint,
		Credential: m.Credential,
		Model:      m.ModelIdentifier,
	}
}

// estimateTokens approximates token counts as half the rune count,
// used when a backend reports no usage.
func estimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 2
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
