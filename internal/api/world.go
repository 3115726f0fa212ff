package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/engine"
	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

const maxRecentEvents = 200

// worldState returns the full world snapshot, served from the projection
// cache when warm and rebuilt from the store otherwise.
func (s *Server) worldState(c *gin.Context) {
	ctx := c.Request.Context()

	if snap, ok, err := s.projections.Snapshot(ctx); err == nil && ok {
		c.JSON(http.StatusOK, snap)
		return
	}

	snap, err := s.rebuildSnapshot(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load world"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) rebuildSnapshot(ctx context.Context) (cache.WorldSnapshot, error) {
	ws, err := s.store.GetWorldState()
	if err != nil {
		return cache.WorldSnapshot{}, err
	}
	agents, err := s.store.GetAllAgents()
	if err != nil {
		return cache.WorldSnapshot{}, err
	}
	spawns, err := s.store.GetAllResourceSpawns()
	if err != nil {
		return cache.WorldSnapshot{}, err
	}
	shelters, err := s.store.GetAllShelters()
	if err != nil {
		return cache.WorldSnapshot{}, err
	}
	snap := cache.WorldSnapshot{
		Tick:           ws.CurrentTick,
		Agents:         agents,
		ResourceSpawns: spawns,
		Shelters:       shelters,
	}
	if err := s.projections.SetSnapshot(ctx, snap); err != nil {
		slog.Warn("snapshot cache write failed", "error", err)
	}
	return snap, nil
}

// worldStart spawns the world when empty and starts the engine.
func (s *Server) worldStart(c *gin.Context) {
	agents, err := s.store.GetAllAgents()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not inspect world"})
		return
	}
	if len(agents) == 0 {
		if err := engine.SpawnWorld(s.store, s.rng, s.cfg, s.spawnPolicyTypes()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "world generation failed"})
			return
		}
	}
	if err := s.engine.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "tick": s.engine.Tick()})
}

// spawnPolicyTypes lists the registered policy types an initial population
// can draw from, excluding the gateway-driven pseudo type.
func (s *Server) spawnPolicyTypes() []string {
	var out []string
	for _, pt := range s.registry.PolicyTypes() {
		if pt != engine.PolicyExternal {
			out = append(out, pt)
		}
	}
	return out
}

func (s *Server) worldPause(c *gin.Context) {
	if err := s.engine.Pause(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused", "tick": s.engine.Tick()})
}

func (s *Server) worldResume(c *gin.Context) {
	if err := s.engine.Resume(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "running", "tick": s.engine.Tick()})
}

// worldReset stops the engine and clears all entities. The cache clears
// before the store reset so no stale projection survives; the event log
// keeps its history and its version high-water mark.
func (s *Server) worldReset(c *gin.Context) {
	s.engine.Stop()
	s.engine.ClearExperimentContext()

	if err := s.projections.Clear(c.Request.Context()); err != nil {
		slog.Warn("projection clear failed", "error", err)
	}
	if err := s.store.ResetWorldData(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "reset failed"})
		return
	}
	if err := s.store.InitWorldState(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "reinit failed"})
		return
	}
	s.rng.Reseed(s.cfg.WorldSeed)

	if ev, err := s.log.Append(0, sim.Event{Type: sim.EventWorldReset, Payload: map[string]any{}}); err == nil {
		if perr := s.projections.PushEvent(c.Request.Context(), ev); perr != nil {
			slog.Warn("projection push failed", "type", ev.Type, "error", perr)
		}
		s.bus.Publish(ev)
	} else {
		slog.Error("emit world_reset", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) listAgents(c *gin.Context) {
	agents, err := s.store.GetAllAgents()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not list agents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

// getAgent returns an agent with its inventory and recent memories.
func (s *Server) getAgent(c *gin.Context) {
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

	inv, err := s.store.GetInventory(id)
	if err != nil {
		inv = map[string]int{}
	}
	memories, err := s.store.GetMemories(id, 50)
	if err != nil {
		memories = nil
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent, "inventory": inv, "memories": memories})
}

// recentEvents serves the bounded recent-events projection, falling back to
// the log on a cold cache.
func (s *Server) recentEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit > maxRecentEvents {
		limit = maxRecentEvents
	}
	if limit < 1 {
		limit = 1
	}

	events, err := s.projections.RecentEvents(c.Request.Context())
	if err != nil || len(events) == 0 {
		events, err = s.log.GetRecentEvents(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load events"})
			return
		}
	}
	if len(events) > limit {
		events = events[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
