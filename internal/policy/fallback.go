package policy

import (
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/sim"
)

// Fallback is the deterministic survival policy used when a model call
// fails, returns garbage, or misses the decision deadline. Given the same
// observation and RNG state it always produces the same decision, so a
// fallback tick never breaks replay determinism. Fallback decisions are
// never written to the response cache.
func Fallback(obs sim.Observation, rng *entropy.Source) sim.Decision {
	self := obs.Self

	// Eat what we carry before anything else.
	if self.Hunger < 50 && obs.Inventory["food"] > 0 {
		return decision(sim.ActionConsume, map[string]any{"itemType": "food"},
			"hungry and carrying food")
	}

	// Desperate and funded: buy food at a shelter.
	if self.Hunger < 30 && self.Balance >= 10 && shelterAt(obs, self.X, self.Y) {
		return decision(sim.ActionBuy, map[string]any{"itemType": "food", "quantity": 1},
			"hungry, buying food at shelter")
	}

	// Food underfoot: gather it.
	if self.Hunger < 50 {
		for _, sp := range obs.NearbyResourceSpawns {
			if sp.Kind == sim.ResourceFood && sp.X == self.X && sp.Y == self.Y && sp.CurrentAmount > 0 {
				return decision(sim.ActionGather, map[string]any{"resourceType": "food", "quantity": 1},
					"gathering food here")
			}
		}
	}

	// Food in view: step toward the nearest spawn. Ties break by spawn ID so
	// the choice is stable.
	if self.Hunger < 40 {
		if target, ok := nearestFood(obs); ok {
			x, y := stepToward(self.X, self.Y, target.X, target.Y)
			return decision(sim.ActionMove, map[string]any{"toX": x, "toY": y},
				"moving toward food")
		}
	}

	if self.Energy < 30 {
		return decision(sim.ActionSleep, map[string]any{"duration": 3}, "resting")
	}

	if self.Balance < 50 && self.Energy >= 20 {
		return decision(sim.ActionWork, map[string]any{"duration": 2}, "earning")
	}

	// Wander: random cardinal step among the in-bounds neighbors, so a
	// border cell never produces a no-op move.
	if self.Energy >= 10 {
		var steps [][2]int
		for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			x, y := self.X+d[0], self.Y+d[1]
			if x < 0 || x >= obs.WorldSize.Width || y < 0 || y >= obs.WorldSize.Height {
				continue
			}
			steps = append(steps, [2]int{x, y})
		}
		if len(steps) > 0 {
			s := steps[rng.IntN(len(steps))]
			return decision(sim.ActionMove, map[string]any{"toX": s[0], "toY": s[1]}, "wandering")
		}
	}

	return decision(sim.ActionSleep, map[string]any{"duration": 1}, "conserving energy")
}

func decision(action sim.ActionType, params map[string]any, reason string) sim.Decision {
	return sim.Decision{Action: action, Params: params, Reasoning: reason}
}

func shelterAt(obs sim.Observation, x, y int) bool {
	for _, sh := range obs.NearbyShelters {
		if sh.X == x && sh.Y == y {
			return true
		}
	}
	return false
}

func nearestFood(obs sim.Observation) (sim.SpawnView, bool) {
	var best sim.SpawnView
	bestDist := -1
	for _, sp := range obs.NearbyResourceSpawns {
		if sp.Kind != sim.ResourceFood || sp.CurrentAmount <= 0 {
			continue
		}
		d := sim.ManhattanDist(obs.Self.X, obs.Self.Y, sp.X, sp.Y)
		if d == 0 {
			continue
		}
		if bestDist < 0 || d < bestDist || (d == bestDist && sp.ID < best.ID) {
			best, bestDist = sp, d
		}
	}
	return best, bestDist > 0
}

// stepToward returns the cell one Manhattan step closer to the target,
// resolving the x axis before the y axis.
func stepToward(x, y, tx, ty int) (int, int) {
	switch {
	case x < tx:
		return x + 1, y
	case x > tx:
		return x - 1, y
	case y < ty:
		return x, y + 1
	case y > ty:
		return x, y - 1
	}
	return x, y
}
