package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/gridworld/internal/actions"
	"github.com/talgya/gridworld/internal/observe"
	"github.com/talgya/gridworld/internal/policy"
	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

// PolicyExternal marks agents driven through the gateway; the engine never
// decides for them.
const PolicyExternal = "external"

// Energy restored per tick slept.
const sleepEnergyRegen = 15

var errVariantComplete = errors.New("variant duration reached")

// runTick executes one full tick. Per-agent failures are logged and skipped;
// a returned error aborts the tick without advancing currentTick.
func (e *Engine) runTick() error {
	t := e.Tick() + 1
	stop := e.stopSignal()

	agents, err := e.store.GetAliveAgents()
	if err != nil {
		return fmt.Errorf("snapshot agents: %w", err)
	}
	spawns, err := e.store.GetAllResourceSpawns()
	if err != nil {
		return fmt.Errorf("snapshot spawns: %w", err)
	}
	shelters, err := e.store.GetAllShelters()
	if err != nil {
		return fmt.Errorf("snapshot shelters: %w", err)
	}
	recent, err := e.log.GetRecentEvents(e.cfg.RecentEventsLimit)
	if err != nil {
		return fmt.Errorf("snapshot events: %w", err)
	}

	inventories := make(map[string]map[string]int, len(agents))
	for _, a := range agents {
		inv, err := e.store.GetInventory(a.ID)
		if err != nil {
			slog.Warn("inventory snapshot failed", "agent", a.ID, "error", err)
			inv = map[string]int{}
		}
		inventories[a.ID] = inv
	}

	view := &actions.View{
		Tick:          t,
		WorldSize:     sim.Size{Width: e.cfg.WorldWidth, Height: e.cfg.WorldHeight},
		WitnessRadius: e.cfg.WitnessRadius,
		Agents:        agents,
		Spawns:        spawns,
		Shelters:      shelters,
		Inventories:   inventories,
		Harvest:       e.store.HarvestResource,
	}
	snap := observe.Snapshot{
		Agents:       agents,
		Spawns:       spawns,
		Shelters:     shelters,
		RecentEvents: recent,
	}

	intents := e.decide(t, agents, snap, inventories, stop)

	// Stop during the decision phase abandons the tick: nothing applies,
	// nothing commits.
	select {
	case <-stop:
		return nil
	default:
	}

	e.applyMu.Lock()
	for _, a := range agents {
		intent, ok := intents[a.ID]
		if !ok {
			continue
		}
		e.applyIntent(t, view, a, intent)
	}
	e.applyMu.Unlock()

	if err := e.environment(t); err != nil {
		return fmt.Errorf("environment pass: %w", err)
	}

	// Commit. Errors from here on abort the tick and pause the engine.
	if err := e.store.AdvanceTick(t); err != nil {
		return fmt.Errorf("advance tick: %w", err)
	}
	e.mu.Lock()
	e.tick = t
	e.mu.Unlock()

	if err := e.emit(t, sim.Event{Type: sim.EventTickEnd, Payload: map[string]any{"tick": t}}); err != nil {
		return fmt.Errorf("emit tick_end: %w", err)
	}

	if ec := e.ExperimentContextSnapshot(); ec != nil && t-ec.StartTick >= ec.DurationTicks {
		if err := e.emit(t, sim.Event{Type: sim.EventVariantEnded, Payload: map[string]any{
			"experimentId": ec.ExperimentID,
			"variantId":    ec.VariantID,
			"endTick":      t,
		}}); err != nil {
			slog.Error("emit variant_ended", "error", err)
		}
		return errVariantComplete
	}
	return nil
}

// decide fans the decision phase out over a bounded worker pool with a hard
// deadline. Agents whose decision misses the deadline get the deterministic
// fallback; sleeping and externally driven agents are skipped. A stop request
// cancels in-flight model calls immediately.
func (e *Engine) decide(t int64, agents []*sim.Agent, snap observe.Snapshot,
	inventories map[string]map[string]int, stop <-chan struct{}) map[string]sim.Intent {

	eligible := make([]*sim.Agent, 0, len(agents))
	for _, a := range agents {
		if a.State == sim.StateSleeping || a.PolicyType == PolicyExternal {
			continue
		}
		eligible = append(eligible, a)
	}
	intents := make(map[string]sim.Intent, len(eligible))
	if len(eligible) == 0 {
		return intents
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DecisionTimeout)
	defer cancel()
	if stop != nil {
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	type outcome struct {
		agentID string
		intent  sim.Intent
	}
	jobs := make(chan *sim.Agent)
	results := make(chan outcome, len(eligible))

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				obs := e.buildObservation(a, snap, inventories, t)
				adapter, err := e.registry.Get(a.PolicyType)
				if err != nil {
					results <- outcome{a.ID, sim.Intent{
						AgentID:  a.ID,
						Decision: policy.Fallback(obs, e.rng.Derived(t, a.ID)),
						Fallback: true,
					}}
					continue
				}
				d, err := adapter.Decide(ctx, obs)
				if err != nil {
					d = policy.Fallback(obs, e.rng.Derived(t, a.ID))
					results <- outcome{a.ID, sim.Intent{AgentID: a.ID, Decision: d, Fallback: true}}
					continue
				}
				results <- outcome{a.ID, sim.Intent{AgentID: a.ID, Decision: d}}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, a := range eligible {
			select {
			case jobs <- a:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

collect:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			intents[res.agentID] = res.intent
		case <-ctx.Done():
			break collect
		}
	}

	// Deadline stragglers: a timeout is a normal event, not an error.
	for _, a := range eligible {
		if _, ok := intents[a.ID]; ok {
			continue
		}
		obs := e.buildObservation(a, snap, inventories, t)
		intents[a.ID] = sim.Intent{
			AgentID:  a.ID,
			Decision: policy.Fallback(obs, e.rng.Derived(t, a.ID)),
			Fallback: true,
		}
		slog.Debug("decision deadline missed, using fallback", "agent", a.ID, "tick", t)
	}
	return intents
}

func (e *Engine) buildObservation(a *sim.Agent, snap observe.Snapshot,
	inventories map[string]map[string]int, t int64) sim.Observation {
	s := snap
	s.Inventory = inventories[a.ID]
	return e.builder.Build(a, s, t)
}

// applyIntent runs one agent's handler, commits the proposed result, and
// returns it. Failures emit action_failed and mutate nothing; transient
// storage errors retry once, then the agent's tick is dropped.
func (e *Engine) applyIntent(t int64, view *actions.View, agent *sim.Agent, intent sim.Intent) sim.ActionResult {
	av := *view
	if intent.Decision.Action == sim.ActionShareInfo {
		av.Knowledge = e.actorKnowledge(agent.ID, sim.ParamString(intent.Decision.Params, "subjectAgentId"))
	}

	res := actions.Execute(&av, agent, intent.Decision)

	if res.Success && res.ClaimShelter != "" {
		err := e.withRetry(func() error {
			ok, cerr := e.store.ClaimShelter(res.ClaimShelter, agent.ID)
			if cerr != nil {
				return cerr
			}
			if !ok {
				return errShelterTaken
			}
			return nil
		})
		if err != nil {
			res = sim.Fail("Shelter already owned")
		}
	}

	if !res.Success {
		failEv := sim.Event{
			Type:    sim.EventActionFailed,
			AgentID: &agent.ID,
			Payload: map[string]any{
				"action": intent.Decision.Action,
				"reason": res.Error,
			},
		}
		if err := e.emit(t, failEv); err != nil {
			slog.Error("emit action_failed", "agent", agent.ID, "error", err)
		}
		return res
	}

	if len(res.Changes) > 0 {
		if err := e.withRetry(func() error { return e.store.UpdateAgent(agent.ID, res.Changes) }); err != nil {
			slog.Warn("agent update failed, dropping agent tick", "agent", agent.ID, "error", err)
			return sim.Fail("storage unavailable")
		}
	}
	for id, patch := range res.Others {
		if err := e.withRetry(func() error { return e.store.UpdateAgent(id, patch) }); err != nil {
			slog.Warn("target update failed", "agent", id, "error", err)
		}
	}
	for _, delta := range res.Inventory {
		owner := delta.AgentID
		if owner == "" {
			owner = agent.ID
		}
		if err := e.withRetry(func() error { return e.store.AddToInventory(owner, delta.ItemType, delta.Qty) }); err != nil {
			slog.Warn("inventory update failed", "agent", owner, "item", delta.ItemType, "error", err)
		}
	}
	for _, k := range res.Knowledge {
		if err := e.store.UpsertKnowledge(k); err != nil {
			slog.Warn("knowledge upsert failed", "agent", k.AgentID, "error", err)
		}
	}
	if len(res.Memories) > 0 {
		if err := e.store.AddMemories(res.Memories); err != nil {
			slog.Warn("memory write failed", "agent", agent.ID, "error", err)
		}
	}
	for _, ev := range res.Events {
		if err := e.emit(t, ev); err != nil {
			slog.Error("emit event", "type", ev.Type, "agent", agent.ID, "error", err)
			return res
		}
	}
	return res
}

var errShelterTaken = errors.New("shelter already owned")

// actorKnowledge loads the actor's lowest-depth knowledge row about one
// subject, for referral depth computation.
func (e *Engine) actorKnowledge(agentID, subjectID string) map[string]sim.Knowledge {
	if subjectID == "" {
		return nil
	}
	rows, err := e.store.GetKnowledge(agentID, subjectID)
	if err != nil || len(rows) == 0 {
		return nil
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.ReferralDepth < best.ReferralDepth {
			best = r
		}
	}
	return map[string]sim.Knowledge{subjectID: best}
}

// environment runs regeneration, vitals decay, sleep recovery, and death.
// This pass is the only emitter of needs_updated.
func (e *Engine) environment(t int64) error {
	if err := e.withRetry(e.store.RegenerateResources); err != nil {
		return fmt.Errorf("regenerate resources: %w", err)
	}

	agents, err := e.store.GetAliveAgents()
	if err != nil {
		return fmt.Errorf("environment snapshot: %w", err)
	}

	for _, a := range agents {
		patch := sim.AgentPatch{}
		hunger := a.Hunger - e.cfg.HungerDecay
		energy := a.Energy
		health := a.Health

		if a.State == sim.StateSleeping {
			if t >= a.SleepUntil {
				patch["state"] = sim.StateIdle
				patch["sleep_until"] = int64(0)
				if err := e.emit(t, sim.Event{
					Type:    sim.EventAgentWoke,
					AgentID: &a.ID,
					Payload: map[string]any{"tick": t},
				}); err != nil {
					return err
				}
			}
			energy = sim.ClampVital(energy + sleepEnergyRegen)
		} else {
			energy -= e.cfg.EnergyDecay
		}

		hunger = sim.ClampVital(hunger)
		energy = sim.ClampVital(energy)
		if hunger <= 0 || energy <= 0 {
			health = sim.ClampVital(health - e.cfg.HealthBleed)
		}
		patch["hunger"] = hunger
		patch["energy"] = energy
		patch["health"] = health

		if err := e.withRetry(func() error { return e.store.UpdateAgent(a.ID, patch) }); err != nil {
			slog.Warn("environment update failed", "agent", a.ID, "error", err)
			continue
		}
		if err := e.emit(t, sim.Event{
			Type:    sim.EventNeedsUpdated,
			AgentID: &a.ID,
			Payload: map[string]any{"hunger": hunger, "energy": energy, "health": health},
		}); err != nil {
			return err
		}

		cause := ""
		switch {
		case hunger <= 0:
			cause = sim.DeathStarvation
		case energy <= 0:
			cause = sim.DeathExhaustion
		case health <= 0:
			cause = sim.DeathInjury
		}
		if cause == "" {
			continue
		}
		if err := e.withRetry(func() error { return e.store.MarkAgentDead(a.ID, t) }); err != nil {
			slog.Error("mark dead failed", "agent", a.ID, "error", err)
			continue
		}
		if err := e.emit(t, sim.Event{
			Type:    sim.EventAgentDied,
			AgentID: &a.ID,
			Payload: map[string]any{"cause": cause, "tick": t, "name": a.Name},
		}); err != nil {
			return err
		}
		slog.Info("agent died", "agent", a.ID, "name", a.Name, "cause", cause, "tick", t)
	}
	return nil
}

// withRetry retries an operation once when storage reports a transient
// failure (busy/locked), then gives up.
func (e *Engine) withRetry(op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	var serr *store.StorageError
	if errors.As(err, &serr) && serr.Transient {
		time.Sleep(10 * time.Millisecond)
		return op()
	}
	return err
}

// ErrAgentDead is returned for external actions on dead agents.
var ErrAgentDead = errors.New("agent is dead")

// ExecuteExternal runs one externally submitted decision through the same
// pipeline as internal agents, serialized against the application phase.
// Events are tagged with the last committed tick.
func (e *Engine) ExecuteExternal(agentID string, d sim.Decision) (sim.ActionResult, error) {
	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return sim.ActionResult{}, err
	}
	if !agent.Alive() {
		return sim.ActionResult{}, ErrAgentDead
	}

	t := e.Tick()
	agents, err := e.store.GetAliveAgents()
	if err != nil {
		return sim.ActionResult{}, err
	}
	spawns, err := e.store.GetAllResourceSpawns()
	if err != nil {
		return sim.ActionResult{}, err
	}
	shelters, err := e.store.GetAllShelters()
	if err != nil {
		return sim.ActionResult{}, err
	}

	inventories := make(map[string]map[string]int, len(agents))
	for _, a := range agents {
		inv, ierr := e.store.GetInventory(a.ID)
		if ierr != nil {
			inv = map[string]int{}
		}
		inventories[a.ID] = inv
	}

	view := &actions.View{
		Tick:          t,
		WorldSize:     sim.Size{Width: e.cfg.WorldWidth, Height: e.cfg.WorldHeight},
		WitnessRadius: e.cfg.WitnessRadius,
		Agents:        agents,
		Spawns:        spawns,
		Shelters:      shelters,
		Inventories:   inventories,
		Harvest:       e.store.HarvestResource,
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	return e.applyIntent(t, view, agent, sim.Intent{AgentID: agentID, Decision: d}), nil
}
