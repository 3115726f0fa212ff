// Package gateway exposes the external agent surface: registration,
// observation, and decision submission for agents driven from outside the
// process. External agents run through the same action pipeline as internal
// ones; only their decision source differs.
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/engine"
	"github.com/talgya/gridworld/internal/eventlog"
	"github.com/talgya/gridworld/internal/observe"
	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

const ctxExternalAgent = "externalAgent"

// Gateway handles the /api/v1/agents routes.
type Gateway struct {
	cfg     *config.Config
	store   *store.Store
	engine  *engine.Engine
	log     *eventlog.Log
	builder *observe.Builder

	// lastDecideTick tracks the most recent tick each external agent
	// submitted a decision in; one decision per tick.
	mu             sync.Mutex
	lastDecideTick map[string]int64
}

// New creates the gateway.
func New(cfg *config.Config, st *store.Store, eng *engine.Engine, log *eventlog.Log) *Gateway {
	return &Gateway{
		cfg:    cfg,
		store:  st,
		engine: eng,
		log:    log,
		builder: observe.NewBuilder(cfg.VisibilityRadius, cfg.VisibilityMetric,
			sim.Size{Width: cfg.WorldWidth, Height: cfg.WorldHeight}),
		lastDecideTick: make(map[string]int64),
	}
}

// Mount registers the v1 routes on a router group.
func (g *Gateway) Mount(r *gin.RouterGroup) {
	r.POST("/agents/register", g.register)

	authed := r.Group("", g.auth)
	authed.GET("/agents/:id/observe", g.observe)
	authed.POST("/agents/:id/decide", g.decide)
	authed.DELETE("/agents/:id", g.deregister)
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type registerRequest struct {
	Name          string `json:"name" binding:"required"`
	Endpoint      string `json:"endpoint"`
	OwnerEmail    string `json:"ownerEmail"`
	SpawnPosition *struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"spawnPosition"`
}

// register creates a simulation agent bound to a fresh API key. The raw key
// appears in this response and nowhere else; only its hash is stored.
func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	x, y := g.cfg.WorldWidth/2, g.cfg.WorldHeight/2
	if req.SpawnPosition != nil {
		x, y = req.SpawnPosition.X, req.SpawnPosition.Y
	}
	if x < 0 || x >= g.cfg.WorldWidth || y < 0 || y >= g.cfg.WorldHeight {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "spawn position out of bounds"})
		return
	}

	agent := &sim.Agent{
		ID:         uuid.NewString(),
		Name:       req.Name,
		PolicyType: engine.PolicyExternal,
		X:          x,
		Y:          y,
		Hunger:     100,
		Energy:     100,
		Health:     100,
		Balance:    50,
		State:      sim.StateIdle,
		Color:      "#ffffff",
		SpawnIndex: 1 << 20, // external agents apply after the spawned population
	}
	if err := g.store.InsertAgent(agent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not create agent"})
		return
	}

	apiKey := uuid.NewString()
	ea := &sim.ExternalAgent{
		ID:               uuid.NewString(),
		AgentID:          agent.ID,
		APIKeyHash:       hashKey(apiKey),
		Endpoint:         req.Endpoint,
		OwnerEmail:       req.OwnerEmail,
		RateLimitPerTick: 1,
		IsActive:         true,
	}
	if err := g.store.InsertExternalAgent(ea); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not register agent"})
		return
	}

	slog.Info("external agent registered", "agent", agent.ID, "name", req.Name)
	c.JSON(http.StatusCreated, gin.H{"agentId": agent.ID, "apiKey": apiKey})
}

// auth resolves the bearer key to an active external agent.
func (g *Gateway) auth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	key, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || key == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing bearer token"})
		return
	}

	ea, err := g.store.GetExternalAgentByKeyHash(hashKey(key))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid api key"})
		return
	}
	if err := g.store.TouchExternalAgent(ea.ID); err != nil {
		slog.Warn("touch external agent failed", "id", ea.ID, "error", err)
	}
	c.Set(ctxExternalAgent, ea)
	c.Next()
}

// bound returns the authenticated external agent when it matches the path id.
func (g *Gateway) bound(c *gin.Context) (*sim.ExternalAgent, bool) {
	ea := c.MustGet(ctxExternalAgent).(*sim.ExternalAgent)
	if ea.AgentID != c.Param("id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "key is not bound to this agent"})
		return nil, false
	}
	return ea, true
}

// observe returns the agent's current observation.
func (g *Gateway) observe(c *gin.Context) {
	ea, ok := g.bound(c)
	if !ok {
		return
	}

	agent, err := g.store.GetAgent(ea.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load agent"})
		return
	}
	if !agent.Alive() {
		c.JSON(http.StatusGone, gin.H{"error": "gone", "message": "agent is dead"})
		return
	}

	snap, err := g.snapshot(agent.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not build observation"})
		return
	}
	tick := g.engine.Tick()
	obs := g.builder.Build(agent, snap, tick)
	c.JSON(http.StatusOK, gin.H{"tick": tick, "observation": obs})
}

type decideRequest struct {
	Action    sim.ActionType `json:"action"`
	Params    map[string]any `json:"params"`
	Reasoning string         `json:"reasoning"`
}

// decide submits one action for the agent, at most once per tick.
func (g *Gateway) decide(c *gin.Context) {
	ea, ok := g.bound(c)
	if !ok {
		return
	}

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	d := sim.Decision{Action: req.Action, Params: req.Params, Reasoning: req.Reasoning}
	if err := sim.ValidateDecision(d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision", "message": err.Error()})
		return
	}
	if target := sim.ParamString(d.Params, "targetAgentId"); target == ea.AgentID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision", "message": "cannot target yourself"})
		return
	}

	tick := g.engine.Tick()
	g.mu.Lock()
	if last, seen := g.lastDecideTick[ea.ID]; seen && last == tick {
		g.mu.Unlock()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "one decision per tick"})
		return
	}
	g.lastDecideTick[ea.ID] = tick
	g.mu.Unlock()

	result, err := g.engine.ExecuteExternal(ea.AgentID, d)
	if errors.Is(err, engine.ErrAgentDead) {
		c.JSON(http.StatusGone, gin.H{"error": "gone", "message": "agent is dead"})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "agent not found"})
		return
	}
	if err != nil {
		// A storage failure is ours, not the client's; give the slot back so
		// the decision can be retried within the same tick.
		g.mu.Lock()
		delete(g.lastDecideTick, ea.ID)
		g.mu.Unlock()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not execute action"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tick": tick, "success": result.Success, "error": result.Error})
}

// deregister retires the agent: the simulation agent dies, the key stops
// working.
func (g *Gateway) deregister(c *gin.Context) {
	ea, ok := g.bound(c)
	if !ok {
		return
	}

	if err := g.store.MarkAgentDead(ea.AgentID, g.engine.Tick()); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not retire agent"})
		return
	}
	if err := g.store.DeactivateExternalAgent(ea.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not deactivate key"})
		return
	}
	slog.Info("external agent deregistered", "agent", ea.AgentID)
	c.JSON(http.StatusOK, gin.H{"agentId": ea.AgentID, "status": "deregistered"})
}

// snapshot gathers the observation inputs for one agent.
func (g *Gateway) snapshot(agentID string) (observe.Snapshot, error) {
	agents, err := g.store.GetAliveAgents()
	if err != nil {
		return observe.Snapshot{}, err
	}
	spawns, err := g.store.GetAllResourceSpawns()
	if err != nil {
		return observe.Snapshot{}, err
	}
	shelters, err := g.store.GetAllShelters()
	if err != nil {
		return observe.Snapshot{}, err
	}
	recent, err := g.log.GetRecentEvents(g.cfg.RecentEventsLimit)
	if err != nil {
		return observe.Snapshot{}, err
	}
	inv, err := g.store.GetInventory(agentID)
	if err != nil {
		inv = map[string]int{}
	}
	return observe.Snapshot{
		Agents:       agents,
		Spawns:       spawns,
		Shelters:     shelters,
		RecentEvents: recent,
		Inventory:    inv,
	}, nil
}
