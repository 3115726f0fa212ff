package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

func openTestLog(t *testing.T) (*Log, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.InitWorldState())

	l := New(s.DB())
	require.NoError(t, l.InitGlobalVersion())
	return l, s
}

func TestAppendRequiresInit(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitWorldState())

	l := New(s.DB())
	_, err = l.Append(1, sim.Event{Type: "tick_end"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestAppendAssignsMonotonicVersions(t *testing.T) {
	l, s := openTestLog(t)
	actor := "a1"

	ev1, err := l.Append(1, sim.Event{Type: "agent_moved", AgentID: &actor,
		Payload: map[string]any{"toX": 3, "toY": 4}})
	require.NoError(t, err)
	ev2, err := l.Append(1, sim.Event{Type: "tick_end"})
	require.NoError(t, err)
	ev3, err := l.Append(2, sim.Event{Type: "tick_end"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), ev1.Version)
	assert.Equal(t, int64(2), ev2.Version)
	assert.Equal(t, int64(3), ev3.Version)
	assert.Equal(t, int64(3), l.Version())

	// Nil payload normalizes to an empty object.
	assert.NotNil(t, ev2.Payload)

	// world_state tracks the high-water mark in the same transaction.
	ws, err := s.GetWorldState()
	require.NoError(t, err)
	assert.Equal(t, int64(3), ws.GlobalEventVersion)
}

func TestVersionRecoveredAfterRestart(t *testing.T) {
	l, s := openTestLog(t)

	for i := 0; i < 5; i++ {
		_, err := l.Append(int64(i), sim.Event{Type: "tick_end"})
		require.NoError(t, err)
	}

	// A fresh Log over the same database picks up where the old one stopped.
	reopened := New(s.DB())
	require.NoError(t, reopened.InitGlobalVersion())
	assert.Equal(t, int64(5), reopened.Version())

	ev, err := reopened.Append(5, sim.Event{Type: "tick_end"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), ev.Version)
}

func TestVersionsSurviveWorldReset(t *testing.T) {
	l, s := openTestLog(t)

	_, err := l.Append(1, sim.Event{Type: "tick_end"})
	require.NoError(t, err)
	require.NoError(t, s.ResetWorldData())

	// Events are not entity state: the log keeps its history and the next
	// version continues from the durable maximum.
	reopened := New(s.DB())
	require.NoError(t, reopened.InitGlobalVersion())
	ev, err := reopened.Append(1, sim.Event{Type: "tick_end"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Version)
}

func TestQueries(t *testing.T) {
	l, _ := openTestLog(t)
	a1, a2 := "a1", "a2"

	_, err := l.Append(1, sim.Event{Type: "agent_moved", AgentID: &a1})
	require.NoError(t, err)
	_, err = l.Append(1, sim.Event{Type: "agent_moved", AgentID: &a2})
	require.NoError(t, err)
	_, err = l.Append(2, sim.Event{Type: "agent_slept", AgentID: &a1})
	require.NoError(t, err)
	_, err = l.Append(3, sim.Event{Type: "tick_end"})
	require.NoError(t, err)

	t.Run("recent newest first", func(t *testing.T) {
		recent, err := l.GetRecentEvents(2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, int64(4), recent[0].Version)
		assert.Equal(t, int64(3), recent[1].Version)
	})

	t.Run("at tick in version order", func(t *testing.T) {
		at, err := l.GetEventsAtTick(1)
		require.NoError(t, err)
		require.Len(t, at, 2)
		assert.Equal(t, int64(1), at[0].Version)
		assert.Equal(t, int64(2), at[1].Version)

		empty, err := l.GetEventsAtTick(99)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("range inclusive and capped", func(t *testing.T) {
		got, err := l.GetEventsInRange(1, 2, 100)
		require.NoError(t, err)
		assert.Len(t, got, 3)

		capped, err := l.GetEventsInRange(1, 3, 2)
		require.NoError(t, err)
		assert.Len(t, capped, 2)
	})

	t.Run("agent timeline", func(t *testing.T) {
		timeline, err := l.GetAgentTimeline("a1", 10)
		require.NoError(t, err)
		require.Len(t, timeline, 2)
		assert.Equal(t, "agent_slept", timeline[0].Type)
		assert.Equal(t, "agent_moved", timeline[1].Type)
	})

	t.Run("tick summaries", func(t *testing.T) {
		sums, err := l.TickSummaries(10)
		require.NoError(t, err)
		require.Len(t, sums, 3)
		assert.Equal(t, TickSummary{Tick: 1, EventCount: 2, FirstVersion: 1, LastVersion: 2}, sums[0])
		assert.Equal(t, TickSummary{Tick: 3, EventCount: 1, FirstVersion: 4, LastVersion: 4}, sums[2])
	})
}

func TestPayloadRoundTrip(t *testing.T) {
	l, _ := openTestLog(t)

	_, err := l.Append(1, sim.Event{Type: "resource_gathered",
		Payload: map[string]any{"spawnId": "sp1", "amountGathered": 2}})
	require.NoError(t, err)

	got, err := l.GetEventsAtTick(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sp1", got[0].Payload["spawnId"])
	// JSON numbers come back as float64.
	assert.Equal(t, float64(2), got[0].Payload["amountGathered"])
}
