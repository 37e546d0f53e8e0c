package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/events"
)

func TestNewPublisherRequiresClient(t *testing.T) {
	pub := events.NewPublisher(nil, nil)
	assert.Nil(t, pub)
}

func TestPublishNilReceiverIsNoOp(t *testing.T) {
	var pub *events.Publisher

	err := pub.Publish(context.Background(), events.Event{
		EventType: events.ItemIngested,
		Payload:   events.ItemIngestedPayload{ItemID: 1, URL: "https://example.com"},
	})
	require.NoError(t, err)
}

func TestPublishAsyncNilReceiverIsNoOp(t *testing.T) {
	var pub *events.Publisher

	pub.PublishAsync(events.Event{EventType: events.DeepCrawlCompleted})

	// Give any stray goroutine a chance to run.
	time.Sleep(10 * time.Millisecond)
}
