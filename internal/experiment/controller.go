// Package experiment sequences experiment variants: reset the world, reseed,
// apply overrides, spawn the roster, run the engine for the variant's
// duration, snapshot the result.
package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/engine"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/policy"
	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

// ErrVariantRunning is returned when a run is requested while another
// variant is active.
var ErrVariantRunning = errors.New("a variant is already running")

// ErrNoPendingVariant is returned when an experiment has nothing left to run.
var ErrNoPendingVariant = errors.New("no pending variant")

// Overrides is the supported subset of per-variant config overrides.
type Overrides struct {
	TickIntervalMs          *int     `json:"tickIntervalMs,omitempty"`
	HungerDecay             *float64 `json:"hungerDecay,omitempty"`
	EnergyDecay             *float64 `json:"energyDecay,omitempty"`
	CapabilityNormalization *bool    `json:"capabilityNormalization,omitempty"`
	AgentCount              *int     `json:"agentCount,omitempty"`
}

// AgentConfig is one roster entry in a variant's agent configuration.
type AgentConfig struct {
	Name        string `json:"name,omitempty"`
	PolicyType  string `json:"policyType"`
	Count       int    `json:"count,omitempty"`
	X           *int   `json:"x,omitempty"`
	Y           *int   `json:"y,omitempty"`
	Personality string `json:"personality,omitempty"`
}

// Controller owns variant sequencing. One variant runs at a time.
type Controller struct {
	cfg         *config.Config
	store       *store.Store
	engine      *engine.Engine
	projections *cache.Projections
	rng         *entropy.Source
	policyTypes func() []string

	// genesis, when set, writes a generated personality onto roster agents
	// that do not specify one. Results are cached by prompt hash.
	genesis policy.Genesis

	// startDelay gives SSE subscribers time to reconnect before the first
	// tick of a new variant.
	startDelay time.Duration
}

// NewController wires the controller and registers the variant expiry hook
// on the engine. genesis may be nil.
func NewController(cfg *config.Config, st *store.Store, eng *engine.Engine,
	proj *cache.Projections, rng *entropy.Source, policyTypes func() []string,
	genesis policy.Genesis) *Controller {
	c := &Controller{
		cfg:         cfg,
		store:       st,
		engine:      eng,
		projections: proj,
		rng:         rng,
		policyTypes: policyTypes,
		genesis:     genesis,
		startDelay:  500 * time.Millisecond,
	}
	eng.OnVariantExpired = c.onVariantExpired
	return c
}

// RunNextVariant starts the next pending variant of an experiment.
func (c *Controller) RunNextVariant(experimentID string) (*store.Variant, error) {
	if _, err := c.store.RunningVariant(); err == nil {
		return nil, ErrVariantRunning
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check running variant: %w", err)
	}

	variant, err := c.store.NextPendingVariant(experimentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPendingVariant
	}
	if err != nil {
		return nil, fmt.Errorf("next pending variant: %w", err)
	}

	c.engine.Stop()

	// Cache before store: stale projections must never outlive the reset.
	if err := c.projections.Clear(context.Background()); err != nil {
		slog.Warn("projection clear failed", "error", err)
	}
	if err := c.store.ResetWorldData(); err != nil {
		return nil, fmt.Errorf("reset world: %w", err)
	}
	if err := c.store.InitWorldState(); err != nil {
		return nil, fmt.Errorf("init world state: %w", err)
	}
	c.rng.Reseed(variant.WorldSeed)

	if err := c.applyOverrides(variant.ConfigOverrides); err != nil {
		return nil, fmt.Errorf("apply overrides: %w", err)
	}
	if err := c.spawnRoster(variant.AgentConfigs); err != nil {
		return nil, fmt.Errorf("spawn roster: %w", err)
	}

	ws, err := c.store.GetWorldState()
	if err != nil {
		return nil, fmt.Errorf("world state: %w", err)
	}
	if err := c.engine.SetExperimentContext(engine.ExperimentContext{
		ExperimentID:  variant.ExperimentID,
		VariantID:     variant.ID,
		StartTick:     ws.CurrentTick,
		DurationTicks: variant.DurationTicks,
	}); err != nil {
		return nil, err
	}
	if err := c.store.MarkVariantRunning(variant.ID, ws.CurrentTick); err != nil {
		return nil, fmt.Errorf("mark variant running: %w", err)
	}
	if err := c.store.UpdateExperimentStatus(variant.ExperimentID, store.ExperimentRunning); err != nil {
		return nil, fmt.Errorf("mark experiment running: %w", err)
	}

	slog.Info("variant starting", "experiment", variant.ExperimentID,
		"variant", variant.ID, "seed", variant.WorldSeed, "duration", variant.DurationTicks)
	time.AfterFunc(c.startDelay, func() {
		if err := c.engine.Start(); err != nil {
			slog.Error("variant engine start failed", "variant", variant.ID, "error", err)
		}
	})
	return variant, nil
}

// StopVariant stops the running variant early and marks it completed.
func (c *Controller) StopVariant(experimentID string) error {
	variant, err := c.store.RunningVariant()
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check running variant: %w", err)
	}
	if variant.ExperimentID != experimentID {
		return store.ErrNotFound
	}

	c.engine.Stop()
	c.engine.ClearExperimentContext()

	endTick := c.engine.Tick()
	if err := c.store.MarkVariantCompleted(variant.ID, endTick); err != nil {
		return fmt.Errorf("mark variant completed: %w", err)
	}
	return c.finishExperimentIfDone(variant.ExperimentID)
}

// onVariantExpired runs after the engine stops itself at the end of a
// variant's duration: snapshot, complete, possibly finish the experiment.
func (c *Controller) onVariantExpired(ec engine.ExperimentContext, endTick int64) {
	c.engine.ClearExperimentContext()

	snap, err := c.buildSnapshot(endTick)
	if err != nil {
		slog.Error("variant snapshot failed", "variant", ec.VariantID, "error", err)
	} else if err := c.store.SaveSnapshot(uuid.NewString(), ec.VariantID, endTick, snap); err != nil {
		slog.Error("variant snapshot save failed", "variant", ec.VariantID, "error", err)
	}

	if err := c.store.MarkVariantCompleted(ec.VariantID, endTick); err != nil {
		slog.Error("mark variant completed failed", "variant", ec.VariantID, "error", err)
		return
	}
	if err := c.finishExperimentIfDone(ec.ExperimentID); err != nil {
		slog.Error("finish experiment failed", "experiment", ec.ExperimentID, "error", err)
	}
	slog.Info("variant completed", "experiment", ec.ExperimentID,
		"variant", ec.VariantID, "endTick", endTick)
}

func (c *Controller) finishExperimentIfDone(experimentID string) error {
	_, err := c.store.NextPendingVariant(experimentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return c.store.UpdateExperimentStatus(experimentID, store.ExperimentCompleted)
}

func (c *Controller) applyOverrides(raw string) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	var o Overrides
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return err
	}
	if o.TickIntervalMs != nil {
		c.cfg.TickInterval = time.Duration(*o.TickIntervalMs) * time.Millisecond
	}
	if o.HungerDecay != nil {
		c.cfg.HungerDecay = *o.HungerDecay
	}
	if o.EnergyDecay != nil {
		c.cfg.EnergyDecay = *o.EnergyDecay
	}
	if o.CapabilityNormalization != nil {
		c.cfg.CapabilityNormalization = *o.CapabilityNormalization
	}
	if o.AgentCount != nil {
		c.cfg.AgentCount = *o.AgentCount
	}
	return nil
}

// spawnRoster creates the variant's agents. An empty roster falls back to
// the default generated world.
func (c *Controller) spawnRoster(raw string) error {
	var roster []AgentConfig
	if raw != "" && raw != "[]" {
		if err := json.Unmarshal([]byte(raw), &roster); err != nil {
			return err
		}
	}
	if len(roster) == 0 {
		return engine.SpawnWorld(c.store, c.rng, c.cfg, c.policyTypes())
	}

	// Explicit roster: still generate terrain, then place the configured
	// agents over the generated population slots.
	cfgCopy := *c.cfg
	cfgCopy.AgentCount = 0
	if err := engine.SpawnWorld(c.store, c.rng, &cfgCopy, c.policyTypes()); err != nil {
		return err
	}

	idx := 0
	for _, entry := range roster {
		count := entry.Count
		if count <= 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			a := rosterAgent(entry, idx, c.cfg, c.rng)
			if a.Personality == "" && c.genesis != nil {
				prompt := fmt.Sprintf("Write a one-sentence personality for %s, an agent in a survival grid world.", a.Name)
				if p, err := c.genesis.Generate(context.Background(), "personality", prompt); err == nil {
					a.Personality = p
				}
			}
			if err := c.store.InsertAgent(a); err != nil {
				return err
			}
			idx++
		}
	}
	return nil
}

func rosterAgent(entry AgentConfig, idx int, cfg *config.Config, rng *entropy.Source) *sim.Agent {
	x := cfg.WorldWidth/2 + rng.IntN(21) - 10
	y := cfg.WorldHeight/2 + rng.IntN(21) - 10
	if entry.X != nil {
		x = *entry.X
	}
	if entry.Y != nil {
		y = *entry.Y
	}
	name := entry.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", entry.PolicyType, idx)
	}
	return &sim.Agent{
		ID:          uuid.NewString(),
		Name:        name,
		PolicyType:  entry.PolicyType,
		X:           clampInt(x, 0, cfg.WorldWidth-1),
		Y:           clampInt(y, 0, cfg.WorldHeight-1),
		Hunger:      100,
		Energy:      100,
		Health:      100,
		Balance:     50,
		State:       sim.StateIdle,
		Color:       "#888888",
		Personality: entry.Personality,
		SpawnIndex:  idx,
	}
}

// buildSnapshot serializes the end-of-variant world for later comparison.
func (c *Controller) buildSnapshot(tick int64) (string, error) {
	agents, err := c.store.GetAllAgents()
	if err != nil {
		return "", err
	}
	spawns, err := c.store.GetAllResourceSpawns()
	if err != nil {
		return "", err
	}
	shelters, err := c.store.GetAllShelters()
	if err != nil {
		return "", err
	}
	snap := map[string]any{
		"tick":           tick,
		"agents":         agents,
		"resourceSpawns": spawns,
		"shelters":       shelters,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
