package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworld/internal/sim"
)

func obsAgent(id string, x, y int) *sim.Agent {
	return &sim.Agent{
		ID: id, Name: "n-" + id, X: x, Y: y,
		Hunger: 70, Energy: 70, Health: 100, Balance: 50,
		State: sim.StateIdle,
	}
}

func TestBuildSelfView(t *testing.T) {
	b := NewBuilder(5, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)

	obs := b.Build(self, Snapshot{Agents: []*sim.Agent{self}}, 7)
	assert.Equal(t, "a1", obs.Self.ID)
	assert.Equal(t, int64(7), obs.Tick)
	assert.Equal(t, 50, obs.WorldSize.Width)
	assert.NotNil(t, obs.Inventory)
	assert.Empty(t, obs.NearbyAgents)
}

func TestBuildRadiusChebyshev(t *testing.T) {
	b := NewBuilder(3, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)
	inside := obsAgent("b1", 13, 13)  // chebyshev 3
	outside := obsAgent("c1", 14, 10) // chebyshev 4

	obs := b.Build(self, Snapshot{Agents: []*sim.Agent{self, inside, outside}}, 1)
	require.Len(t, obs.NearbyAgents, 1)
	assert.Equal(t, "b1", obs.NearbyAgents[0].ID)
}

func TestBuildRadiusEuclidean(t *testing.T) {
	b := NewBuilder(3, "euclidean", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)
	corner := obsAgent("b1", 13, 13) // euclidean ~4.24, chebyshev 3
	axis := obsAgent("c1", 13, 10)   // euclidean 3

	obs := b.Build(self, Snapshot{Agents: []*sim.Agent{self, corner, axis}}, 1)
	require.Len(t, obs.NearbyAgents, 1)
	assert.Equal(t, "c1", obs.NearbyAgents[0].ID)
}

func TestBuildUnknownMetricDefaultsChebyshev(t *testing.T) {
	b := NewBuilder(3, "taxicab", sim.Size{Width: 50, Height: 50})
	assert.Equal(t, MetricChebyshev, b.Metric)
}

func TestBuildFiltersDeadAgents(t *testing.T) {
	b := NewBuilder(5, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)
	dead := obsAgent("b1", 11, 10)
	dead.State = sim.StateDead

	obs := b.Build(self, Snapshot{Agents: []*sim.Agent{self, dead}}, 1)
	assert.Empty(t, obs.NearbyAgents)
}

func TestBuildHidesVitalsOfOthers(t *testing.T) {
	b := NewBuilder(5, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)
	other := obsAgent("b1", 11, 10)

	obs := b.Build(self, Snapshot{Agents: []*sim.Agent{self, other}}, 1)
	require.Len(t, obs.NearbyAgents, 1)
	// AgentView carries position and state only; this is a compile-level
	// guarantee, but keep the shape pinned.
	assert.Equal(t, sim.AgentView{ID: "b1", Name: "n-b1", X: 11, Y: 10, State: sim.StateIdle},
		obs.NearbyAgents[0])
}

func TestBuildSortsByID(t *testing.T) {
	b := NewBuilder(10, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("m", 10, 10)
	snap := Snapshot{
		Agents: []*sim.Agent{self, obsAgent("z", 11, 10), obsAgent("a", 12, 10)},
		Spawns: []*sim.ResourceSpawn{
			{ID: "sp-z", X: 10, Y: 11, Kind: sim.ResourceFood, CurrentAmount: 1},
			{ID: "sp-a", X: 10, Y: 12, Kind: sim.ResourceFood, CurrentAmount: 1},
		},
		Shelters: []*sim.Shelter{
			{ID: "sh-z", X: 9, Y: 10},
			{ID: "sh-a", X: 8, Y: 10},
		},
	}

	obs := b.Build(self, snap, 1)
	assert.Equal(t, "a", obs.NearbyAgents[0].ID)
	assert.Equal(t, "z", obs.NearbyAgents[1].ID)
	assert.Equal(t, "sp-a", obs.NearbyResourceSpawns[0].ID)
	assert.Equal(t, "sh-a", obs.NearbyShelters[0].ID)
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(10, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)
	snap := Snapshot{
		Agents:    []*sim.Agent{self, obsAgent("b1", 12, 12), obsAgent("c1", 8, 8)},
		Inventory: map[string]int{"food": 2},
	}

	first := b.Build(self, snap, 3)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, b.Build(self, snap, 3))
	}
}

func TestEventVisibility(t *testing.T) {
	b := NewBuilder(3, "chebyshev", sim.Size{Width: 50, Height: 50})
	self := obsAgent("a1", 10, 10)
	near := obsAgent("b1", 11, 10)
	far := obsAgent("c1", 30, 30)
	selfID, nearID, farID := "a1", "b1", "c1"

	snap := Snapshot{
		Agents: []*sim.Agent{self, near, far},
		RecentEvents: []sim.WorldEvent{
			{Tick: 1, Type: "agent_moved", AgentID: &selfID},
			{Tick: 2, Type: "agent_moved", AgentID: &nearID},
			{Tick: 3, Type: "agent_moved", AgentID: &farID},
			{Tick: 4, Type: "agent_harmed", AgentID: &farID,
				Payload: map[string]any{"targetAgentId": "a1"}},
			{Tick: 5, Type: "tick_end"},
		},
	}

	obs := b.Build(self, snap, 6)
	require.Len(t, obs.RecentEvents, 3)
	assert.Equal(t, int64(1), obs.RecentEvents[0].Tick) // own event
	assert.Equal(t, int64(2), obs.RecentEvents[1].Tick) // nearby actor
	assert.Equal(t, int64(4), obs.RecentEvents[2].Tick) // involves observer
}
