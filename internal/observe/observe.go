// Package observe builds per-agent observations from a world snapshot. The
// builder is a pure function of its inputs: identical snapshots produce
// identical observations, which is what makes observation fingerprints
// cacheable.
package observe

import (
	"math"
	"sort"

	"github.com/talgya/gridworld/internal/sim"
)

// Metric selects how visibility distance is measured.
type Metric string

const (
	MetricChebyshev Metric = "chebyshev"
	MetricEuclidean Metric = "euclidean"
)

// Snapshot is the immutable world view an observation is built from.
type Snapshot struct {
	Agents       []*sim.Agent
	Spawns       []*sim.ResourceSpawn
	Shelters     []*sim.Shelter
	RecentEvents []sim.WorldEvent
	Inventory    map[string]int
}

// Builder constructs observations bounded by a visibility radius.
type Builder struct {
	Radius    int
	Metric    Metric
	WorldSize sim.Size
}

// NewBuilder creates a builder. Unknown metrics fall back to Chebyshev,
// which matches the grid adjacency used by movement.
func NewBuilder(radius int, metric string, worldSize sim.Size) *Builder {
	m := MetricChebyshev
	if Metric(metric) == MetricEuclidean {
		m = MetricEuclidean
	}
	return &Builder{Radius: radius, Metric: m, WorldSize: worldSize}
}

func (b *Builder) visible(x1, y1, x2, y2 int) bool {
	switch b.Metric {
	case MetricEuclidean:
		dx, dy := float64(x1-x2), float64(y1-y2)
		return math.Sqrt(dx*dx+dy*dy) <= float64(b.Radius)
	default:
		return sim.ChebyshevDist(x1, y1, x2, y2) <= b.Radius
	}
}

// Build assembles the observation for one agent at one tick. Dead agents are
// filtered from nearbyAgents; recent events are limited to those within the
// radius or directly involving the observer.
func (b *Builder) Build(agent *sim.Agent, snap Snapshot, tick int64) sim.Observation {
	obs := sim.Observation{
		Self: sim.SelfView{
			ID:      agent.ID,
			Name:    agent.Name,
			X:       agent.X,
			Y:       agent.Y,
			Hunger:  agent.Hunger,
			Energy:  agent.Energy,
			Health:  agent.Health,
			Balance: agent.Balance,
			State:   agent.State,
		},
		Inventory:            snap.Inventory,
		NearbyAgents:         []sim.AgentView{},
		NearbyResourceSpawns: []sim.SpawnView{},
		NearbyShelters:       []sim.ShelterView{},
		RecentEvents:         []sim.EventView{},
		Tick:                 tick,
		WorldSize:            b.WorldSize,
	}
	if obs.Inventory == nil {
		obs.Inventory = map[string]int{}
	}

	for _, other := range snap.Agents {
		if other.ID == agent.ID || !other.Alive() {
			continue
		}
		if b.visible(agent.X, agent.Y, other.X, other.Y) {
			obs.NearbyAgents = append(obs.NearbyAgents, sim.AgentView{
				ID: other.ID, Name: other.Name, X: other.X, Y: other.Y, State: other.State,
			})
		}
	}
	sort.Slice(obs.NearbyAgents, func(i, j int) bool {
		return obs.NearbyAgents[i].ID < obs.NearbyAgents[j].ID
	})

	for _, sp := range snap.Spawns {
		if b.visible(agent.X, agent.Y, sp.X, sp.Y) {
			obs.NearbyResourceSpawns = append(obs.NearbyResourceSpawns, sim.SpawnView{
				ID: sp.ID, X: sp.X, Y: sp.Y, Kind: sp.Kind, CurrentAmount: sp.CurrentAmount,
			})
		}
	}
	sort.Slice(obs.NearbyResourceSpawns, func(i, j int) bool {
		return obs.NearbyResourceSpawns[i].ID < obs.NearbyResourceSpawns[j].ID
	})

	for _, sh := range snap.Shelters {
		if b.visible(agent.X, agent.Y, sh.X, sh.Y) {
			obs.NearbyShelters = append(obs.NearbyShelters, sim.ShelterView{
				ID: sh.ID, X: sh.X, Y: sh.Y, CanSleep: sh.CanSleep, OwnerAgent: sh.OwnerAgent,
			})
		}
	}
	sort.Slice(obs.NearbyShelters, func(i, j int) bool {
		return obs.NearbyShelters[i].ID < obs.NearbyShelters[j].ID
	})

	for _, ev := range snap.RecentEvents {
		if !b.eventVisible(agent, ev, snap) {
			continue
		}
		obs.RecentEvents = append(obs.RecentEvents, sim.EventView{
			Tick: ev.Tick, Type: ev.Type, AgentID: ev.AgentID, Payload: ev.Payload,
		})
	}

	return obs
}

// eventVisible reports whether the observer should see a recent event:
// either it involves them directly, or the acting agent is currently within
// the visibility radius.
func (b *Builder) eventVisible(agent *sim.Agent, ev sim.WorldEvent, snap Snapshot) bool {
	if ev.AgentID == nil {
		return false
	}
	if *ev.AgentID == agent.ID {
		return true
	}
	if target, ok := ev.Payload["targetAgentId"].(string); ok && target == agent.ID {
		return true
	}
	for _, other := range snap.Agents {
		if other.ID == *ev.AgentID {
			return b.visible(agent.X, agent.Y, other.X, other.Y)
		}
	}
	return false
}
