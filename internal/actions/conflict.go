package actions

import (
	"github.com/talgya/gridworld/internal/sim"
)

// Harm damage and energy cost per intensity.
var harmDamage = map[string]float64{
	sim.IntensityLight:    5,
	sim.IntensityModerate: 15,
	sim.IntensitySevere:   30,
}

var harmEnergyCost = map[string]int{
	sim.IntensityLight:    2,
	sim.IntensityModerate: 4,
	sim.IntensitySevere:   6,
}

// Witness sentiment shifts toward the actor.
const (
	witnessSentimentHarm  = -40
	witnessSentimentSteal = -25
)

// handleHarm attacks an adjacent agent. Health loss is applied to the
// target; death from injury is resolved by the environment pass, so a lethal
// blow and starvation kill through the same code path.
func handleHarm(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	targetID := sim.ParamString(d.Params, "targetAgentId")
	if targetID == actor.ID {
		return sim.Fail("Cannot harm yourself")
	}
	target := v.Agent(targetID)
	if target == nil || !target.Alive() {
		return sim.Fail("Target agent not found or dead")
	}
	if sim.ManhattanDist(actor.X, actor.Y, target.X, target.Y) > 1 {
		return sim.Fail("Target too far away")
	}

	intensity := sim.ParamString(d.Params, "intensity")
	cost := EffectiveCost(harmEnergyCost[intensity], actor)
	if int(actor.Energy) < cost {
		return sim.Fail("Not enough energy")
	}

	damage := harmDamage[intensity]
	knowledge, witnessEvents := witnessEffects(v, actor, targetID, "harm", witnessSentimentHarm)

	events := []sim.Event{{
		Type:    sim.EventAgentHarmed,
		AgentID: &actor.ID,
		Payload: map[string]any{
			"targetAgentId": targetID,
			"intensity":     intensity,
			"damage":        damage,
			"newHealth":     sim.ClampVital(target.Health - damage),
		},
	}}
	events = append(events, witnessEvents...)

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{"energy": actor.Energy - float64(cost)},
		Others: map[string]sim.AgentPatch{
			targetID: {"health": sim.ClampVital(target.Health - damage)},
		},
		Knowledge: knowledge,
		Events:    events,
		Memories: []sim.Memory{{
			AgentID: targetID, Tick: v.Tick, Kind: "conflict",
			Content: "was harmed by " + actor.Name,
			X:       target.X, Y: target.Y,
		}},
	}
}

// handleSteal takes one item from an adjacent agent's inventory.
func handleSteal(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	targetID := sim.ParamString(d.Params, "targetAgentId")
	if targetID == actor.ID {
		return sim.Fail("Cannot steal from yourself")
	}
	target := v.Agent(targetID)
	if target == nil || !target.Alive() {
		return sim.Fail("Target agent not found or dead")
	}
	if sim.ManhattanDist(actor.X, actor.Y, target.X, target.Y) > 1 {
		return sim.Fail("Target too far away")
	}

	cost := EffectiveCost(2, actor)
	if int(actor.Energy) < cost {
		return sim.Fail("Not enough energy")
	}

	item := sim.ParamString(d.Params, "itemType")
	if item == "" {
		return sim.Fail("itemType is required")
	}
	if v.Inventory(targetID)[item] < 1 {
		return sim.Fail("Target has no %s", item)
	}

	knowledge, witnessEvents := witnessEffects(v, actor, targetID, "steal", witnessSentimentSteal)

	events := []sim.Event{{
		Type:    sim.EventAgentStole,
		AgentID: &actor.ID,
		Payload: map[string]any{
			"targetAgentId": targetID,
			"itemType":      item,
		},
	}}
	events = append(events, witnessEvents...)

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{"energy": actor.Energy - float64(cost)},
		Inventory: []sim.InventoryDelta{
			{AgentID: targetID, ItemType: item, Qty: -1},
			{AgentID: actor.ID, ItemType: item, Qty: 1},
		},
		Knowledge: knowledge,
		Events:    events,
		Memories: []sim.Memory{{
			AgentID: targetID, Tick: v.Tick, Kind: "conflict",
			Content: "was robbed of " + item + " by " + actor.Name,
			X:       target.X, Y: target.Y,
		}},
	}
}

// handleDeceive plants a false claim with a nearby agent. Deception reaches
// farther than physical conflict (distance 3) and leaves no witnesses; the
// only trace is the target's memory of what it was told.
func handleDeceive(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	targetID := sim.ParamString(d.Params, "targetAgentId")
	if targetID == actor.ID {
		return sim.Fail("Cannot deceive yourself")
	}
	target := v.Agent(targetID)
	if target == nil || !target.Alive() {
		return sim.Fail("Target agent not found or dead")
	}
	if sim.ManhattanDist(actor.X, actor.Y, target.X, target.Y) > 3 {
		return sim.Fail("Target too far away")
	}

	cost := EffectiveCost(1, actor)
	if int(actor.Energy) < cost {
		return sim.Fail("Not enough energy")
	}

	claim := sim.ParamString(d.Params, "claim")
	claimType := sim.ParamString(d.Params, "claimType")

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{"energy": actor.Energy - float64(cost)},
		Events: []sim.Event{{
			Type:    sim.EventAgentDeceived,
			AgentID: &actor.ID,
			Payload: map[string]any{
				"targetAgentId": targetID,
				"claimType":     claimType,
				"claim":         claim,
			},
		}},
		Memories: []sim.Memory{{
			AgentID: targetID, Tick: v.Tick, Kind: "told",
			Content: actor.Name + " said: " + claim,
			X:       target.X, Y: target.Y,
		}},
	}
}
