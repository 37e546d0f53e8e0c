// Package events publishes ingestion and crawl lifecycle events to
// Redis Streams for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/webinsight/internal/logger"
)

// StreamName is the Redis stream all events are appended to.
const StreamName = "webinsight:events"

// asyncPublishTimeout is the context timeout for async publish operations.
const asyncPublishTimeout = 5 * time.Second

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// ItemIngested fires when a genuinely new source item is stored.
	ItemIngested EventType = "item.ingested"
	// DeepCrawlCompleted fires once per deep-crawl run, after every
	// requested item has reached a terminal status.
	DeepCrawlCompleted EventType = "deepcrawl.completed"
)

// Event is the envelope appended to the stream.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ItemIngestedPayload describes a newly stored item.
type ItemIngestedPayload struct {
	ItemID    int64  `json:"item_id"`
	URL       string `json:"url"`
	SourceTag string `json:"source_tag"`
}

// DeepCrawlCompletedPayload summarizes one deep-crawl run.
type DeepCrawlCompletedPayload struct {
	Requested int `json:"requested"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Publisher publishes events to Redis Streams. A nil Publisher is a
// valid no-op, so callers never need to branch on whether events are
// enabled.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates a new event publisher.
// Returns nil if client is nil.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, log: log}
}

// Publish appends an event to the stream.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"event": string(payload),
		},
	})
	if publishErr := result.Err(); publishErr != nil {
		if p.log != nil {
			p.log.Error("failed to publish event",
				logger.String("event_type", string(event.EventType)),
				logger.Error(publishErr),
			)
		}
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	return nil
}

// PublishAsync publishes an event asynchronously. Errors are logged but
// never surfaced; event delivery must not fail the triggering request.
func (p *Publisher) PublishAsync(event Event) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil && p.log != nil {
			p.log.Error("async publish failed",
				logger.String("event_type", string(event.EventType)),
				logger.Error(err),
			)
		}
	}()
}
