package store

import (
	"database/sql"
	"errors"

	"github.com/talgya/gridworld/internal/sim"
)

// InsertResourceSpawn creates a spawn row.
func (s *Store) InsertResourceSpawn(r *sim.ResourceSpawn) error {
	_, err := s.conn.NamedExec(`INSERT INTO resource_spawns
		(id, x, y, kind, current_amount, max_amount, regen_rate, biome)
		VALUES (:id, :x, :y, :kind, :current_amount, :max_amount, :regen_rate, :biome)`, r)
	return storageErr("insert spawn", err)
}

// GetResourceSpawn returns one spawn by id.
func (s *Store) GetResourceSpawn(id string) (*sim.ResourceSpawn, error) {
	var r sim.ResourceSpawn
	err := s.conn.Get(&r, `SELECT * FROM resource_spawns WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get spawn", err)
	}
	return &r, nil
}

// GetResourceSpawnsAtPosition returns every spawn at an exact cell.
func (s *Store) GetResourceSpawnsAtPosition(x, y int) ([]*sim.ResourceSpawn, error) {
	var out []*sim.ResourceSpawn
	err := s.conn.Select(&out,
		`SELECT * FROM resource_spawns WHERE x = ? AND y = ? ORDER BY id`, x, y)
	return out, storageErr("get spawns at position", err)
}

// GetAllResourceSpawns returns every spawn.
func (s *Store) GetAllResourceSpawns() ([]*sim.ResourceSpawn, error) {
	var out []*sim.ResourceSpawn
	err := s.conn.Select(&out, `SELECT * FROM resource_spawns ORDER BY id`)
	return out, storageErr("get all spawns", err)
}

// HarvestResource atomically decrements a spawn and returns what was actually
// granted: min(wanted, currentAmount), 0 when depleted. Two concurrent calls
// can never over-grant because the read and decrement share one transaction.
func (s *Store) HarvestResource(spawnID string, wanted int) (int, error) {
	if wanted <= 0 {
		return 0, nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return 0, storageErr("harvest begin", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.Get(&current, `SELECT current_amount FROM resource_spawns WHERE id = ?`, spawnID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, storageErr("harvest read", err)
	}

	granted := wanted
	if current < granted {
		granted = current
	}
	if granted == 0 {
		return 0, tx.Commit()
	}

	if _, err := tx.Exec(
		`UPDATE resource_spawns SET current_amount = current_amount - ? WHERE id = ?`,
		granted, spawnID); err != nil {
		return 0, storageErr("harvest decrement", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("harvest commit", err)
	}
	return granted, nil
}

// RegenerateResources applies one environment-pass regen step to every spawn,
// clamped to max_amount.
func (s *Store) RegenerateResources() error {
	_, err := s.conn.Exec(`UPDATE resource_spawns
		SET current_amount = MIN(max_amount, current_amount + regen_rate)
		WHERE current_amount < max_amount`)
	return storageErr("regenerate resources", err)
}

// InsertShelter creates a shelter row.
func (s *Store) InsertShelter(sh *sim.Shelter) error {
	_, err := s.conn.NamedExec(`INSERT INTO shelters (id, x, y, can_sleep, owner_agent)
		VALUES (:id, :x, :y, :can_sleep, :owner_agent)`, sh)
	return storageErr("insert shelter", err)
}

// GetAllShelters returns every shelter.
func (s *Store) GetAllShelters() ([]*sim.Shelter, error) {
	var out []*sim.Shelter
	err := s.conn.Select(&out, `SELECT * FROM shelters ORDER BY id`)
	return out, storageErr("get shelters", err)
}

// GetSheltersAtPosition returns shelters at an exact cell.
func (s *Store) GetSheltersAtPosition(x, y int) ([]*sim.Shelter, error) {
	var out []*sim.Shelter
	err := s.conn.Select(&out,
		`SELECT * FROM shelters WHERE x = ? AND y = ? ORDER BY id`, x, y)
	return out, storageErr("get shelters at position", err)
}

// ClaimShelter sets shelter ownership if it is currently unowned.
func (s *Store) ClaimShelter(shelterID, agentID string) (bool, error) {
	res, err := s.conn.Exec(
		`UPDATE shelters SET owner_agent = ? WHERE id = ? AND owner_agent IS NULL`,
		agentID, shelterID)
	if err != nil {
		return false, storageErr("claim shelter", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
