package actions

import (
	"github.com/talgya/gridworld/internal/sim"
)

// handleMove advances the actor one step toward (toX, toY). The agent walks
// for the tick and arrives (state idle) when the step lands on the
// destination; farther destinations take one tick per step, re-decided each
// tick.
func handleMove(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	toX := int(sim.ParamNumber(d.Params, "toX", float64(actor.X)))
	toY := int(sim.ParamNumber(d.Params, "toY", float64(actor.Y)))

	if toX < 0 || toX >= v.WorldSize.Width || toY < 0 || toY >= v.WorldSize.Height {
		return sim.Fail("Position out of bounds (%d,%d)", toX, toY)
	}
	if toX == actor.X && toY == actor.Y {
		return sim.Fail("Already at position (%d,%d)", toX, toY)
	}

	cost := EffectiveCost(1, actor)
	if int(actor.Energy) < cost {
		return sim.Fail("Not enough energy")
	}

	nx, ny := stepToward(actor.X, actor.Y, toX, toY)
	state := sim.StateWalking
	if nx == toX && ny == toY {
		state = sim.StateIdle
	}

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{
			"x": nx, "y": ny,
			"energy": actor.Energy - float64(cost),
			"state":  state,
		},
		Events: []sim.Event{{
			Type:    sim.EventAgentMoved,
			AgentID: &actor.ID,
			Payload: map[string]any{
				"fromX": actor.X, "fromY": actor.Y,
				"toX": nx, "toY": ny,
				"destX": toX, "destY": toY,
				"energyCost": cost,
			},
		}},
	}
}

// stepToward returns the cell one step closer to the target, moving
// diagonally when both axes differ.
func stepToward(x, y, tx, ty int) (int, int) {
	nx, ny := x, y
	if x < tx {
		nx++
	} else if x > tx {
		nx--
	}
	if y < ty {
		ny++
	} else if y > ty {
		ny--
	}
	return nx, ny
}

// handleSleep puts the actor to sleep for duration ticks. Energy recovery
// happens in the environment pass while the agent sleeps.
func handleSleep(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	if actor.State == sim.StateSleeping {
		return sim.Fail("Already sleeping")
	}
	duration := int64(sim.ParamNumber(d.Params, "duration", 1))

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{
			"state":       sim.StateSleeping,
			"sleep_until": v.Tick + duration,
		},
		Events: []sim.Event{{
			Type:    sim.EventAgentSleeping,
			AgentID: &actor.ID,
			Payload: map[string]any{"duration": duration, "until": v.Tick + duration},
		}},
	}
}

// handleGather harvests from a resource spawn on the actor's cell. The
// harvest itself is the store's atomic compare-decrement, so concurrent
// gathers at the same spawn can never over-grant.
func handleGather(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	wanted := int(sim.ParamNumber(d.Params, "quantity", 1))
	if wanted < 1 || wanted > 5 {
		return sim.Fail("Invalid quantity")
	}
	if int(actor.Energy) < EffectiveCost(wanted, actor) {
		return sim.Fail("Not enough energy")
	}

	here := v.SpawnsAt(actor.X, actor.Y)
	if len(here) == 0 {
		return sim.Fail("No resources at position (%d,%d)", actor.X, actor.Y)
	}

	kind := sim.ParamString(d.Params, "resourceType")
	var spawn *sim.ResourceSpawn
	if kind == "" {
		spawn = here[0]
	} else {
		for _, sp := range here {
			if string(sp.Kind) == kind {
				spawn = sp
				break
			}
		}
		if spawn == nil {
			return sim.Fail("No %s resource at position", kind)
		}
	}
	if spawn.CurrentAmount <= 0 {
		return sim.Fail("resource depleted")
	}

	granted, err := v.Harvest(spawn.ID, wanted)
	if err != nil || granted == 0 {
		return sim.Fail("Failed to gather")
	}

	cost := EffectiveCost(granted, actor)
	newEnergy := actor.Energy - float64(cost)
	item := spawn.Kind.ItemType()

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{"energy": newEnergy},
		Inventory: []sim.InventoryDelta{
			{ItemType: item, Qty: granted},
		},
		Events: []sim.Event{{
			Type:    sim.EventAgentGathered,
			AgentID: &actor.ID,
			Payload: map[string]any{
				"spawnId":        spawn.ID,
				"resourceType":   spawn.Kind,
				"itemType":       item,
				"amountGathered": granted,
				"energyCost":     cost,
				"newEnergy":      newEnergy,
			},
		}},
		Memories: []sim.Memory{{
			AgentID: actor.ID, Tick: v.Tick, Kind: "action",
			Content: "gathered " + item + " here",
			X:       actor.X, Y: actor.Y,
		}},
	}
}

// Consumable effects. Food restores hunger, batteries restore energy.
const (
	foodHungerRestore    = 30
	batteryEnergyRestore = 40
)

// handleConsume eats one unit from the actor's inventory.
func handleConsume(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	item := sim.ParamString(d.Params, "itemType")
	if v.Inventory(actor.ID)[item] < 1 {
		return sim.Fail("No %s in inventory", item)
	}

	changes := sim.AgentPatch{}
	payload := map[string]any{"itemType": item}
	switch item {
	case "food":
		changes["hunger"] = sim.ClampVital(actor.Hunger + foodHungerRestore)
		payload["newHunger"] = changes["hunger"]
	case "battery":
		changes["energy"] = sim.ClampVital(actor.Energy + batteryEnergyRestore)
		payload["newEnergy"] = changes["energy"]
	default:
		return sim.Fail("Cannot consume %s", item)
	}

	return sim.ActionResult{
		Success:   true,
		Changes:   changes,
		Inventory: []sim.InventoryDelta{{ItemType: item, Qty: -1}},
		Events: []sim.Event{{
			Type:    sim.EventAgentConsumed,
			AgentID: &actor.ID,
			Payload: payload,
		}},
	}
}
