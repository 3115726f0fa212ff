package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/gridworld/internal/sim"
)

// agentPatchColumns is the set of columns UpdateAgent accepts. Anything else
// in a patch is a programming error and is rejected.
var agentPatchColumns = map[string]bool{
	"name": true, "x": true, "y": true, "hunger": true, "energy": true,
	"health": true, "balance": true, "state": true, "color": true,
	"personality": true, "sleep_until": true, "died_at": true,
}

// InsertAgent creates a new agent row.
func (s *Store) InsertAgent(a *sim.Agent) error {
	_, err := s.conn.NamedExec(`INSERT INTO agents
		(id, name, policy_type, x, y, hunger, energy, health, balance, state,
		 color, personality, spawn_index, sleep_until, died_at)
		VALUES (:id, :name, :policy_type, :x, :y, :hunger, :energy, :health,
		 :balance, :state, :color, :personality, :spawn_index, :sleep_until, :died_at)`, a)
	return storageErr("insert agent", err)
}

// GetAgent returns one agent by id.
func (s *Store) GetAgent(id string) (*sim.Agent, error) {
	var a sim.Agent
	err := s.conn.Get(&a, `SELECT * FROM agents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get agent", err)
	}
	return &a, nil
}

// GetAliveAgents returns every non-dead agent in deterministic order:
// spawn index first, id as tiebreaker. The tick engine relies on this order.
func (s *Store) GetAliveAgents() ([]*sim.Agent, error) {
	var out []*sim.Agent
	err := s.conn.Select(&out, `SELECT * FROM agents
		WHERE state != 'dead' ORDER BY spawn_index, id`)
	return out, storageErr("get alive agents", err)
}

// GetAllAgents returns every agent, dead included.
func (s *Store) GetAllAgents() ([]*sim.Agent, error) {
	var out []*sim.Agent
	err := s.conn.Select(&out, `SELECT * FROM agents ORDER BY spawn_index, id`)
	return out, storageErr("get all agents", err)
}

// UpdateAgent applies a partial update. Vitals are clamped to their legal
// ranges here so no caller can violate the store invariants.
func (s *Store) UpdateAgent(id string, patch sim.AgentPatch) error {
	if len(patch) == 0 {
		return nil
	}

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	for col, val := range patch {
		if !agentPatchColumns[col] {
			return fmt.Errorf("update agent: illegal column %q", col)
		}
		switch col {
		case "hunger", "energy", "health":
			if f, ok := asFloat(val); ok {
				val = sim.ClampVital(f)
			}
		case "balance":
			if f, ok := asFloat(val); ok && f < 0 {
				val = 0.0
			}
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	args = append(args, id)

	res, err := s.conn.Exec(
		`UPDATE agents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return storageErr("update agent", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// MarkAgentDead transitions an agent to the terminal dead state.
func (s *Store) MarkAgentDead(id string, tick int64) error {
	return s.UpdateAgent(id, sim.AgentPatch{
		"state":   string(sim.StateDead),
		"died_at": tick,
	})
}
