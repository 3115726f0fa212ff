package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworld/internal/sim"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.InitWorldState())
	return s
}

func seedAgent(t *testing.T, s *Store, id string, spawnIndex int) *sim.Agent {
	t.Helper()
	a := &sim.Agent{
		ID: id, Name: "agent-" + id, PolicyType: "fallback",
		X: 5, Y: 5, Hunger: 80, Energy: 80, Health: 100, Balance: 50,
		State: sim.StateIdle, Color: "#ffffff", SpawnIndex: spawnIndex,
	}
	require.NoError(t, s.InsertAgent(a))
	return a
}

func TestWorldStateLifecycle(t *testing.T) {
	s := openTestStore(t)

	ws, err := s.GetWorldState()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ws.CurrentTick)
	assert.False(t, ws.IsPaused)

	// InitWorldState is idempotent and never clobbers the singleton.
	require.NoError(t, s.AdvanceTick(9))
	require.NoError(t, s.InitWorldState())
	ws, err = s.GetWorldState()
	require.NoError(t, err)
	assert.Equal(t, int64(9), ws.CurrentTick)

	require.NoError(t, s.PauseWorld())
	ws, _ = s.GetWorldState()
	assert.True(t, ws.IsPaused)
	require.NoError(t, s.ResumeWorld())
	ws, _ = s.GetWorldState()
	assert.False(t, ws.IsPaused)
}

func TestAgentCRUD(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)

	a, err := s.GetAgent("a1")
	require.NoError(t, err)
	assert.Equal(t, "agent-a1", a.Name)

	_, err = s.GetAgent("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdateAgent("a1", sim.AgentPatch{"x": 7, "balance": 120.0}))
	a, _ = s.GetAgent("a1")
	assert.Equal(t, 7, a.X)
	assert.Equal(t, 120.0, a.Balance)

	err = s.UpdateAgent("missing", sim.AgentPatch{"x": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAgentClampsVitals(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)

	require.NoError(t, s.UpdateAgent("a1", sim.AgentPatch{
		"hunger": 140.0, "energy": -10.0, "balance": -5.0,
	}))
	a, err := s.GetAgent("a1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.Hunger)
	assert.Equal(t, 0.0, a.Energy)
	assert.Equal(t, 0.0, a.Balance)
}

func TestUpdateAgentRejectsIllegalColumn(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)

	err := s.UpdateAgent("a1", sim.AgentPatch{"id": "evil"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal column")
}

func TestAliveAgentsOrderAndDeath(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "b", 1)
	seedAgent(t, s, "a", 0)
	seedAgent(t, s, "c", 1)

	alive, err := s.GetAliveAgents()
	require.NoError(t, err)
	require.Len(t, alive, 3)
	// Spawn index first, id as tiebreaker.
	assert.Equal(t, "a", alive[0].ID)
	assert.Equal(t, "b", alive[1].ID)
	assert.Equal(t, "c", alive[2].ID)

	require.NoError(t, s.MarkAgentDead("b", 12))
	alive, _ = s.GetAliveAgents()
	require.Len(t, alive, 2)

	dead, err := s.GetAgent("b")
	require.NoError(t, err)
	assert.Equal(t, sim.StateDead, dead.State)
	require.NotNil(t, dead.DiedAt)
	assert.Equal(t, int64(12), *dead.DiedAt)

	all, _ := s.GetAllAgents()
	assert.Len(t, all, 3)
}

func TestHarvestResource(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertResourceSpawn(&sim.ResourceSpawn{
		ID: "sp1", X: 3, Y: 3, Kind: sim.ResourceFood,
		CurrentAmount: 3, MaxAmount: 10, RegenRate: 1, Biome: "plains",
	}))

	granted, err := s.HarvestResource("sp1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)

	// Only one unit left: the grant clamps.
	granted, err = s.HarvestResource("sp1", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)

	// Depleted grants zero.
	granted, err = s.HarvestResource("sp1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)

	_, err = s.HarvestResource("missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	granted, err = s.HarvestResource("sp1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
}

func TestRegenerateResources(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertResourceSpawn(&sim.ResourceSpawn{
		ID: "sp1", Kind: sim.ResourceFood, CurrentAmount: 9, MaxAmount: 10, RegenRate: 3,
	}))

	require.NoError(t, s.RegenerateResources())
	sp, err := s.GetResourceSpawn("sp1")
	require.NoError(t, err)
	assert.Equal(t, 10, sp.CurrentAmount, "regen clamps at max")
}

func TestSpawnsAtPosition(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertResourceSpawn(&sim.ResourceSpawn{
		ID: "sp1", X: 2, Y: 2, Kind: sim.ResourceFood, CurrentAmount: 1, MaxAmount: 1,
	}))
	require.NoError(t, s.InsertResourceSpawn(&sim.ResourceSpawn{
		ID: "sp2", X: 2, Y: 3, Kind: sim.ResourceFood, CurrentAmount: 1, MaxAmount: 1,
	}))

	here, err := s.GetResourceSpawnsAtPosition(2, 2)
	require.NoError(t, err)
	require.Len(t, here, 1)
	assert.Equal(t, "sp1", here[0].ID)
}

func TestInventoryAddAndPrune(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)

	require.NoError(t, s.AddToInventory("a1", "food", 3))
	require.NoError(t, s.AddToInventory("a1", "food", 2))
	qty, err := s.GetItemQuantity("a1", "food")
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	require.NoError(t, s.AddToInventory("a1", "food", -5))
	inv, err := s.GetInventory("a1")
	require.NoError(t, err)
	assert.Empty(t, inv, "zero stacks are deleted")

	require.NoError(t, s.AddToInventory("a1", "food", 0))
}

func TestClaimShelterOnce(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertShelter(&sim.Shelter{ID: "s1", X: 1, Y: 1, CanSleep: true}))

	ok, err := s.ClaimShelter("s1", "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second claimant loses, including the original owner re-claiming.
	ok, err = s.ClaimShelter("s1", "a2")
	require.NoError(t, err)
	assert.False(t, ok)

	shelters, _ := s.GetAllShelters()
	require.Len(t, shelters, 1)
	require.NotNil(t, shelters[0].OwnerAgent)
	assert.Equal(t, "a1", *shelters[0].OwnerAgent)
}

func TestMemories(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)

	require.NoError(t, s.AddMemories([]sim.Memory{
		{AgentID: "a1", Tick: 1, Kind: "action", Content: "first", X: 1, Y: 1},
		{AgentID: "a1", Tick: 2, Kind: "social", Content: "second", X: 2, Y: 2},
	}))
	require.NoError(t, s.AddMemories(nil))

	mems, err := s.GetMemories("a1", 10)
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "second", mems[0].Content, "newest first")

	mems, _ = s.GetMemories("a1", 1)
	assert.Len(t, mems, 1)
}

func TestKnowledgeDirectBeatsReferral(t *testing.T) {
	s := openTestStore(t)
	ref := "sharer"

	require.NoError(t, s.UpsertKnowledge(sim.Knowledge{
		AgentID: "a1", SubjectID: "b1", InfoType: "reputation",
		Sentiment: -40, DiscoveryType: sim.DiscoveryDirect, ReferralDepth: 0,
	}))

	// Hearsay about the same subject and info type never downgrades direct
	// knowledge.
	require.NoError(t, s.UpsertKnowledge(sim.Knowledge{
		AgentID: "a1", SubjectID: "b1", InfoType: "reputation",
		Sentiment: 50, DiscoveryType: sim.DiscoveryReferral,
		ReferredBy: &ref, ReferralDepth: 2,
	}))

	rows, err := s.GetKnowledge("a1", "b1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sim.DiscoveryDirect, rows[0].DiscoveryType)
	assert.Equal(t, -40.0, rows[0].Sentiment)

	// A later direct observation does update.
	require.NoError(t, s.UpsertKnowledge(sim.Knowledge{
		AgentID: "a1", SubjectID: "b1", InfoType: "reputation",
		Sentiment: -25, DiscoveryType: sim.DiscoveryDirect, ReferralDepth: 0,
	}))
	rows, _ = s.GetKnowledge("a1", "b1")
	require.Len(t, rows, 1)
	assert.Equal(t, -25.0, rows[0].Sentiment)
}

func TestKnowledgeReferralUpsert(t *testing.T) {
	s := openTestStore(t)
	ref := "sharer"

	require.NoError(t, s.UpsertKnowledge(sim.Knowledge{
		AgentID: "a1", SubjectID: "b1", InfoType: "warning",
		Sentiment: -10, DiscoveryType: sim.DiscoveryReferral,
		ReferredBy: &ref, ReferralDepth: 3,
	}))
	require.NoError(t, s.UpsertKnowledge(sim.Knowledge{
		AgentID: "a1", SubjectID: "b1", InfoType: "warning",
		Sentiment: -20, DiscoveryType: sim.DiscoveryReferral,
		ReferredBy: &ref, ReferralDepth: 1,
	}))

	rows, err := s.GetKnowledge("a1", "b1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].ReferralDepth)
}

func TestExternalAgents(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)

	ea := &sim.ExternalAgent{
		ID: "ea1", AgentID: "a1", APIKeyHash: "hash1",
		RateLimitPerTick: 1, IsActive: true,
	}
	require.NoError(t, s.InsertExternalAgent(ea))

	got, err := s.GetExternalAgentByKeyHash("hash1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AgentID)

	_, err = s.GetExternalAgentByKeyHash("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.TouchExternalAgent("ea1"))
	got, _ = s.GetExternalAgent("ea1")
	assert.NotNil(t, got.LastSeenAt)

	require.NoError(t, s.DeactivateExternalAgent("ea1"))
	_, err = s.GetExternalAgentByKeyHash("hash1")
	assert.ErrorIs(t, err, ErrNotFound, "deactivated keys stop resolving")

	assert.ErrorIs(t, s.DeactivateExternalAgent("missing"), ErrNotFound)
}

func TestExperimentVariantSequencing(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.CreateExperiment(&Experiment{
		ID: "e1", Name: "baseline vs normalized", Status: ExperimentPlanning,
	}))
	require.NoError(t, s.AddVariant(&Variant{
		ID: "v1", ExperimentID: "e1", Name: "baseline", Status: VariantPending,
		WorldSeed: 1, DurationTicks: 100, Position: 0,
	}))
	require.NoError(t, s.AddVariant(&Variant{
		ID: "v2", ExperimentID: "e1", Name: "normalized", Status: VariantPending,
		WorldSeed: 2, DurationTicks: 100, Position: 1,
	}))

	_, err := s.RunningVariant()
	assert.ErrorIs(t, err, ErrNotFound)

	next, err := s.NextPendingVariant("e1")
	require.NoError(t, err)
	assert.Equal(t, "v1", next.ID)

	require.NoError(t, s.MarkVariantRunning("v1", 0))
	running, err := s.RunningVariant()
	require.NoError(t, err)
	assert.Equal(t, "v1", running.ID)
	require.NotNil(t, running.StartTick)
	assert.Equal(t, int64(0), *running.StartTick)

	require.NoError(t, s.MarkVariantCompleted("v1", 100))
	next, err = s.NextPendingVariant("e1")
	require.NoError(t, err)
	assert.Equal(t, "v2", next.ID)

	require.NoError(t, s.MarkVariantCompleted("v2", 0))
	_, err = s.NextPendingVariant("e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateExperiment(&Experiment{ID: "e1", Name: "x", Status: ExperimentPlanning}))
	require.NoError(t, s.AddVariant(&Variant{
		ID: "v1", ExperimentID: "e1", Status: VariantPending, DurationTicks: 10,
	}))

	require.NoError(t, s.SaveSnapshot("snap1", "v1", 10, `{"tick":10}`))
	snap, err := s.GetSnapshot("v1")
	require.NoError(t, err)
	assert.Equal(t, `{"tick":10}`, snap)

	_, err = s.GetSnapshot("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetWorldDataKeepsEvents(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)
	require.NoError(t, s.InsertResourceSpawn(&sim.ResourceSpawn{
		ID: "sp1", Kind: sim.ResourceFood, CurrentAmount: 1, MaxAmount: 1,
	}))
	require.NoError(t, s.AdvanceTick(40))

	require.NoError(t, s.ResetWorldData())

	agents, _ := s.GetAllAgents()
	assert.Empty(t, agents)
	spawns, _ := s.GetAllResourceSpawns()
	assert.Empty(t, spawns)

	ws, err := s.GetWorldState()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ws.CurrentTick)
}

func TestResetWorldDataRetiresExternalKeys(t *testing.T) {
	s := openTestStore(t)
	seedAgent(t, s, "a1", 0)
	require.NoError(t, s.InsertExternalAgent(&sim.ExternalAgent{
		ID: "ea1", AgentID: "a1", APIKeyHash: "hash1",
		RateLimitPerTick: 1, IsActive: true,
	}))

	require.NoError(t, s.ResetWorldData())

	// The bound agent is gone; the key must stop resolving with it.
	_, err := s.GetExternalAgentByKeyHash("hash1")
	assert.ErrorIs(t, err, ErrNotFound)

	ea, err := s.GetExternalAgent("ea1")
	require.NoError(t, err)
	assert.False(t, ea.IsActive)
}
