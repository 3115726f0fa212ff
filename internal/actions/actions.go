// Package actions implements the per-tick action handlers. A handler is a
// pure function of (view, actor, decision) that proposes an ActionResult;
// the tick engine applies proposed changes and appends proposed events. The
// one exception to purity is gather, which calls the store's atomic harvest
// through the view so two agents can never over-drain a spawn.
package actions

import (
	"math"

	"github.com/talgya/gridworld/internal/sim"
)

// View is the read-only world snapshot handlers decide against. The engine
// builds one per tick; handlers never reach the store directly.
type View struct {
	Tick          int64
	WorldSize     sim.Size
	WitnessRadius int

	Agents   []*sim.Agent
	Spawns   []*sim.ResourceSpawn
	Shelters []*sim.Shelter

	// Inventories is keyed by agent ID, then item type.
	Inventories map[string]map[string]int

	// Knowledge is the actor's knowledge rows keyed by subject ID, used to
	// compute referral depth for share_info.
	Knowledge map[string]sim.Knowledge

	// Harvest is the store's atomic compare-decrement. Returns the granted
	// amount, 0 when the spawn is depleted.
	Harvest func(spawnID string, wanted int) (int, error)
}

// Agent returns an alive agent from the view.
func (v *View) Agent(id string) *sim.Agent {
	for _, a := range v.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Inventory returns an agent's item map, never nil.
func (v *View) Inventory(agentID string) map[string]int {
	if inv, ok := v.Inventories[agentID]; ok && inv != nil {
		return inv
	}
	return map[string]int{}
}

// ShelterAt returns the shelter on a cell, if any.
func (v *View) ShelterAt(x, y int) *sim.Shelter {
	for _, sh := range v.Shelters {
		if sh.X == x && sh.Y == y {
			return sh
		}
	}
	return nil
}

// SpawnsAt returns all resource spawns on a cell.
func (v *View) SpawnsAt(x, y int) []*sim.ResourceSpawn {
	var out []*sim.ResourceSpawn
	for _, sp := range v.Spawns {
		if sp.X == x && sp.Y == y {
			out = append(out, sp)
		}
	}
	return out
}

// Execute dispatches a validated decision to its handler. Decisions reach
// this point already schema-validated; handlers only check world
// preconditions.
func Execute(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	if !actor.Alive() {
		return sim.Fail("Agent is dead")
	}
	if actor.State == sim.StateSleeping && d.Action != sim.ActionSleep {
		return sim.Fail("Agent is sleeping")
	}

	switch d.Action {
	case sim.ActionMove:
		return handleMove(v, actor, d)
	case sim.ActionGather:
		return handleGather(v, actor, d)
	case sim.ActionConsume:
		return handleConsume(v, actor, d)
	case sim.ActionSleep:
		return handleSleep(v, actor, d)
	case sim.ActionWork:
		return handleWork(v, actor, d)
	case sim.ActionBuy:
		return handleBuy(v, actor, d)
	case sim.ActionTrade:
		return handleTrade(v, actor, d)
	case sim.ActionHarm:
		return handleHarm(v, actor, d)
	case sim.ActionSteal:
		return handleSteal(v, actor, d)
	case sim.ActionDeceive:
		return handleDeceive(v, actor, d)
	case sim.ActionShareInfo:
		return handleShareInfo(v, actor, d)
	case sim.ActionClaim:
		return handleClaim(v, actor, d)
	case sim.ActionNameLocation:
		return handleNameLocation(v, actor, d)
	}
	return sim.Fail("Unknown action %q", d.Action)
}

// Multiplier is the progressive vitals penalty on energy costs: low energy
// and low hunger make everything more expensive.
func Multiplier(a *sim.Agent) float64 {
	m := 1.0
	if a.Energy < 30 {
		m += 0.5
	}
	if a.Energy < 15 {
		m += 0.5
	}
	if a.Hunger < 30 {
		m += 0.3
	}
	return m
}

// EffectiveCost applies the vitals multiplier to a base energy cost,
// rounding up.
func EffectiveCost(base int, a *sim.Agent) int {
	return int(math.Ceil(float64(base) * Multiplier(a)))
}

// witnesses returns alive agents within the witness radius of the actor,
// excluding the actor and target. Used by conflict handlers to propagate
// reputation.
func witnesses(v *View, actor *sim.Agent, targetID string) []*sim.Agent {
	var out []*sim.Agent
	for _, a := range v.Agents {
		if a.ID == actor.ID || a.ID == targetID || !a.Alive() {
			continue
		}
		if sim.ChebyshevDist(actor.X, actor.Y, a.X, a.Y) <= v.WitnessRadius {
			out = append(out, a)
		}
	}
	return out
}

// witnessEffects builds the reputation knowledge rows and the single
// witnessed_conflict event for a conflict action.
func witnessEffects(v *View, actor *sim.Agent, targetID, conflictType string, sentiment float64) ([]sim.Knowledge, []sim.Event) {
	seen := witnesses(v, actor, targetID)
	if len(seen) == 0 {
		return nil, nil
	}

	rows := make([]sim.Knowledge, 0, len(seen))
	ids := make([]string, 0, len(seen))
	for _, w := range seen {
		rows = append(rows, sim.Knowledge{
			AgentID:       w.ID,
			SubjectID:     actor.ID,
			InfoType:      "reputation",
			Sentiment:     sentiment,
			DiscoveryType: sim.DiscoveryDirect,
			ReferralDepth: 0,
		})
		ids = append(ids, w.ID)
	}
	ev := sim.Event{
		Type:    sim.EventWitnessed,
		AgentID: &actor.ID,
		Payload: map[string]any{
			"conflictType":  conflictType,
			"targetAgentId": targetID,
			"witnessIds":    ids,
		},
	}
	return rows, []sim.Event{ev}
}
