package apihttp

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"chartsight/internal/logger"
)

// sseWriter serializes pipeline events onto one response stream.
// Engine callbacks may fire from the request goroutine only, but the
// mutex keeps the format intact if that ever changes.
type sseWriter struct {
	mu      sync.Mutex
	writer  gin.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(c *gin.Context) *sseWriter {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	return &sseWriter{writer: c.Writer, flusher: flusher}
}

// Emit writes one named event with a JSON payload and flushes.
func (w *sseWriter) Emit(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Warnf("sse: drop %s event, marshal failed: %v", event, err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.writer.WriteString("event: " + event + "\ndata: " + string(payload) + "\n\n"); err != nil {
		logger.Debugf("sse: write failed: %v", err)
		return
	}
	w.flusher.Flush()
}
