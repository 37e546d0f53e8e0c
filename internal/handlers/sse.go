package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// doneSentinel terminates every SSE stream so clients can tell a
// finished stream from a dropped connection.
const doneSentinel = "[DONE]"

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// writeSSE emits one JSON-encoded event and flushes immediately.
func writeSSE(c *gin.Context, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

// writeSSEDone emits the terminal sentinel event.
func writeSSEDone(c *gin.Context) {
	_, _ = c.Writer.WriteString("data: " + doneSentinel + "\n\n")
	c.Writer.Flush()
}
