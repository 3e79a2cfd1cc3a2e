package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quasar/internal/orchestrator"
)

// handleChatStream runs the orchestrator and relays every event over
// SSE. Each record is framed as "data: <json>\n\n" with the event type
// inside the JSON payload. The final record is always done or error
// unless the client disconnected.
func (s *Server) handleChatStream(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	events := make(chan orchestrator.Event, 100)
	done := make(chan struct{})
	go func() {
		defer close(events)
		defer close(done)
		_, err := s.orch.Process(c.Request.Context(), req, func(e orchestrator.Event) {
			select {
			case events <- e:
			case <-c.Request.Context().Done():
			}
		})
		if err != nil && c.Request.Context().Err() == nil {
			s.logger.Error("Stream processing failed: %v", err)
		}
	}()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				<-done
				return
			}
			data, err := orchestrator.Serialize(event)
			if err != nil {
				s.logger.Error("Event serialization failed: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
