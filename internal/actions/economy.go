package actions

import (
	"github.com/talgya/gridworld/internal/sim"
)

// Work pays per tick worked; shelters double as workplaces and shops.
const (
	workPayPerTick        = 10
	workEnergyPerTick     = 2
	workHungerPerTick     = 0.5
	shopMarkupUnsupported = "Cannot buy %s"
)

// Shop prices per unit, in balance.
var shopPrices = map[string]float64{
	"food":     10,
	"battery":  15,
	"material": 5,
}

// handleWork earns balance at a shelter. Working is instantaneous within the
// tick and never changes state; a stuck "working" state is exactly the bug
// that rule prevents.
func handleWork(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	duration := int(sim.ParamNumber(d.Params, "duration", 1))
	if duration < 1 || duration > 5 {
		return sim.Fail("Invalid duration")
	}
	if v.ShelterAt(actor.X, actor.Y) == nil {
		return sim.Fail("No shelter at position (%d,%d)", actor.X, actor.Y)
	}

	cost := EffectiveCost(workEnergyPerTick*duration, actor)
	if int(actor.Energy) < cost {
		return sim.Fail("Not enough energy")
	}

	earned := float64(workPayPerTick * duration)
	newBalance := actor.Balance + earned
	newEnergy := actor.Energy - float64(cost)
	newHunger := actor.Hunger - workHungerPerTick*float64(duration)
	if newHunger < 0 {
		newHunger = 0
	}

	return sim.ActionResult{
		Success: true,
		Changes: sim.AgentPatch{
			"balance": newBalance,
			"energy":  newEnergy,
			"hunger":  newHunger,
		},
		Events: []sim.Event{
			{
				Type:    sim.EventAgentWorked,
				AgentID: &actor.ID,
				Payload: map[string]any{
					"duration":   duration,
					"earned":     earned,
					"energyCost": cost,
					"newEnergy":  newEnergy,
				},
			},
			{
				Type:    sim.EventBalanceChanged,
				AgentID: &actor.ID,
				Payload: map[string]any{
					"delta":      earned,
					"newBalance": newBalance,
					"reason":     "work",
				},
			},
		},
	}
}

// handleBuy purchases items at a shelter's shop.
func handleBuy(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	item := sim.ParamString(d.Params, "itemType")
	qty := int(sim.ParamNumber(d.Params, "quantity", 1))
	if qty < 1 {
		return sim.Fail("Invalid quantity")
	}
	price, ok := shopPrices[item]
	if !ok {
		return sim.Fail(shopMarkupUnsupported, item)
	}
	if v.ShelterAt(actor.X, actor.Y) == nil {
		return sim.Fail("No shelter at position (%d,%d)", actor.X, actor.Y)
	}

	total := price * float64(qty)
	if actor.Balance < total {
		return sim.Fail("Insufficient balance")
	}
	newBalance := actor.Balance - total

	return sim.ActionResult{
		Success:   true,
		Changes:   sim.AgentPatch{"balance": newBalance},
		Inventory: []sim.InventoryDelta{{ItemType: item, Qty: qty}},
		Events: []sim.Event{
			{
				Type:    sim.EventAgentBought,
				AgentID: &actor.ID,
				Payload: map[string]any{
					"itemType": item, "quantity": qty, "cost": total,
				},
			},
			{
				Type:    sim.EventBalanceChanged,
				AgentID: &actor.ID,
				Payload: map[string]any{
					"delta":      -total,
					"newBalance": newBalance,
					"reason":     "buy",
				},
			},
		},
	}
}

// handleTrade exchanges items with an adjacent agent. Without a
// requestItemType the trade is a one-way gift.
func handleTrade(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	targetID := sim.ParamString(d.Params, "targetAgentId")
	if targetID == actor.ID {
		return sim.Fail("Cannot trade with yourself")
	}
	target := v.Agent(targetID)
	if target == nil || !target.Alive() {
		return sim.Fail("Target agent not found or dead")
	}
	if sim.ManhattanDist(actor.X, actor.Y, target.X, target.Y) > 1 {
		return sim.Fail("Target too far away")
	}

	offerItem := sim.ParamString(d.Params, "offerItemType")
	offerQty := int(sim.ParamNumber(d.Params, "offerQuantity", 1))
	requestItem := sim.ParamString(d.Params, "requestItemType")
	requestQty := int(sim.ParamNumber(d.Params, "requestQuantity", 1))
	if offerQty < 1 || (requestItem != "" && requestQty < 1) {
		return sim.Fail("Invalid quantity")
	}

	if v.Inventory(actor.ID)[offerItem] < offerQty {
		return sim.Fail("Not enough %s to offer", offerItem)
	}
	if requestItem != "" && v.Inventory(targetID)[requestItem] < requestQty {
		return sim.Fail("Target lacks %s", requestItem)
	}

	deltas := []sim.InventoryDelta{
		{AgentID: actor.ID, ItemType: offerItem, Qty: -offerQty},
		{AgentID: targetID, ItemType: offerItem, Qty: offerQty},
	}
	if requestItem != "" {
		deltas = append(deltas,
			sim.InventoryDelta{AgentID: targetID, ItemType: requestItem, Qty: -requestQty},
			sim.InventoryDelta{AgentID: actor.ID, ItemType: requestItem, Qty: requestQty},
		)
	}

	return sim.ActionResult{
		Success:   true,
		Inventory: deltas,
		Events: []sim.Event{{
			Type:    sim.EventAgentTraded,
			AgentID: &actor.ID,
			Payload: map[string]any{
				"targetAgentId": targetID,
				"offerItemType": offerItem, "offerQuantity": offerQty,
				"requestItemType": requestItem, "requestQuantity": requestQty,
			},
		}},
		Memories: []sim.Memory{{
			AgentID: actor.ID, Tick: v.Tick, Kind: "social",
			Content: "traded with " + target.Name,
			X:       actor.X, Y: actor.Y,
		}},
	}
}
