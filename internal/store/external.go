package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/talgya/gridworld/internal/sim"
)

// InsertExternalAgent registers an external controller for a simulation agent.
func (s *Store) InsertExternalAgent(ea *sim.ExternalAgent) error {
	_, err := s.conn.NamedExec(`INSERT INTO external_agents
		(id, agent_id, api_key_hash, endpoint, owner_email, rate_limit_per_tick, last_seen_at, is_active)
		VALUES (:id, :agent_id, :api_key_hash, :endpoint, :owner_email, :rate_limit_per_tick, :last_seen_at, :is_active)`, ea)
	return storageErr("insert external agent", err)
}

// GetExternalAgent returns one external agent by id.
func (s *Store) GetExternalAgent(id string) (*sim.ExternalAgent, error) {
	var ea sim.ExternalAgent
	err := s.conn.Get(&ea, `SELECT * FROM external_agents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get external agent", err)
	}
	return &ea, nil
}

// GetExternalAgentByKeyHash looks up an active external agent by API key hash.
func (s *Store) GetExternalAgentByKeyHash(hash string) (*sim.ExternalAgent, error) {
	var ea sim.ExternalAgent
	err := s.conn.Get(&ea,
		`SELECT * FROM external_agents WHERE api_key_hash = ? AND is_active = 1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get external agent by key", err)
	}
	return &ea, nil
}

// TouchExternalAgent updates the last-seen timestamp.
func (s *Store) TouchExternalAgent(id string) error {
	_, err := s.conn.Exec(
		`UPDATE external_agents SET last_seen_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return storageErr("touch external agent", err)
}

// DeactivateExternalAgent marks an external agent inactive. The bound
// simulation agent is transitioned to dead separately by the gateway.
func (s *Store) DeactivateExternalAgent(id string) error {
	res, err := s.conn.Exec(`UPDATE external_agents SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return storageErr("deactivate external agent", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
