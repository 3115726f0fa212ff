package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talgya/gridworld/internal/sim"
)

const ssePingInterval = 30 * time.Second

// streamEvents serves the live event stream over SSE. The first frame is a
// connected event carrying the current tick; every committed world event
// follows as an event:-typed frame; a ping goes out every 30 seconds to
// keep intermediaries from closing the connection.
func (s *Server) streamEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported", "message": "response writer cannot stream"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := s.bus.Subscribe()
	defer sub.Unsubscribe()

	writeFrame(c, "connected", map[string]any{
		"tick":      s.engine.Tick(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	flusher.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			fmt.Fprint(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case ev, open := <-sub.C:
			if !open {
				return
			}
			writeEvent(c, ev)
			flusher.Flush()
		}
	}
}

func writeFrame(c *gin.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
}

func writeEvent(c *gin.Context, ev sim.WorldEvent) {
	writeFrame(c, ev.Type, ev)
}
