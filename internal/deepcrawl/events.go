package deepcrawl

// EventType labels progress events emitted during a deep-crawl run.
type EventType string

const (
	// EventProcessing announces an item is about to be crawled.
	EventProcessing EventType = "processing"
	// EventError reports one item's failure; the run continues.
	EventError EventType = "error"
	// EventCompleted is the run's terminal event.
	EventCompleted EventType = "completed"
)

// Event is one progress update streamed to the consumer.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// ProcessingData announces the item currently being worked on.
type ProcessingData struct {
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Progress int    `json:"progress"`
	Title    string `json:"title"`
}

// ErrorData reports a single item's failure.
type ErrorData struct {
	ItemID  int64  `json:"item_id,omitempty"`
	Message string `json:"message"`
}

// CompletedData summarizes the finished run.
type CompletedData struct {
	Success int `json:"success"`
	Fail    int `json:"fail"`
	Total   int `json:"total"`
}
