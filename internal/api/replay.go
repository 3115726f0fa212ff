package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talgya/gridworld/internal/store"
)

// replayTicks lists per-tick event summaries, newest first.
func (s *Server) replayTicks(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	summaries, err := s.log.TickSummaries(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load tick summaries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticks": summaries, "count": len(summaries)})
}

func tickParam(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("n"), 10, 64)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid tick"})
		return 0, false
	}
	return n, true
}

// replayTick summarizes one tick.
func (s *Server) replayTick(c *gin.Context) {
	n, ok := tickParam(c)
	if !ok {
		return
	}
	events, err := s.log.GetEventsAtTick(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load tick"})
		return
	}

	byType := map[string]int{}
	for _, ev := range events {
		byType[ev.Type]++
	}
	c.JSON(http.StatusOK, gin.H{"tick": n, "eventCount": len(events), "byType": byType})
}

// replayTickEvents returns the raw events of one tick in commit order.
func (s *Server) replayTickEvents(c *gin.Context) {
	n, ok := tickParam(c)
	if !ok {
		return
	}
	events, err := s.log.GetEventsAtTick(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tick": n, "events": events, "count": len(events)})
}

// replayEvents returns events in a tick range.
func (s *Server) replayEvents(c *gin.Context) {
	from := int64(queryInt(c, "from", 0))
	to := int64(queryInt(c, "to", int(s.engine.Tick())))
	limit := queryInt(c, "limit", 500)
	if from > to {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "from must not exceed to"})
		return
	}

	events, err := s.log.GetEventsInRange(from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "events": events, "count": len(events)})
}

// agentHistory returns what an agent remembers and believes: its memories
// and knowledge rows rather than the raw event stream.
func (s *Server) agentHistory(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	agent, err := s.store.GetAgent(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load agent"})
		return
	}

	memories, err := s.store.GetMemories(id, queryInt(c, "limit", 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load memories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent, "memories": memories})
}

// agentTimeline returns the events an agent initiated, in commit order.
func (s *Server) agentTimeline(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetAgent(id); errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "agent not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load agent"})
		return
	}

	events, err := s.log.GetAgentTimeline(id, queryInt(c, "limit", 200))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load timeline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agentId": id, "events": events, "count": len(events)})
}
