// Package store provides SQLite-backed world state storage: agents, resource
// spawns, shelters, inventories, and the world singleton. The store is the
// only component allowed to mutate these entities; everything else proposes
// changes through the tick engine.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// StorageError wraps a driver failure. Transient errors are retried once by
// the tick engine before the agent's tick is dropped.
type StorageError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr classifies a driver error. SQLITE_BUSY and lock contention are
// transient; everything else is fatal.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	transient := strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "busy")
	return &StorageError{Op: op, Transient: transient, Err: err}
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates the world database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The engine serializes writes; a single connection avoids SQLITE_BUSY
	// between the tick loop and HTTP readers sharing one file.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory store. Used by tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// DB exposes the underlying connection for the event log, which shares the
// same database file.
func (s *Store) DB() *sqlx.DB {
	return s.conn
}

// InitWorldState creates the world singleton if missing. Idempotent.
func (s *Store) InitWorldState() error {
	_, err := s.conn.Exec(`INSERT OR IGNORE INTO world_state
		(id, current_tick, is_paused, global_event_version) VALUES (1, 0, 0, 0)`)
	return storageErr("init world state", err)
}

// GetWorldState returns the world singleton.
func (s *Store) GetWorldState() (WorldStateRow, error) {
	var row WorldStateRow
	err := s.conn.Get(&row, `SELECT current_tick, is_paused, global_event_version
		FROM world_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNotFound
	}
	return row, storageErr("get world state", err)
}

// WorldStateRow mirrors sim.WorldState with db tags.
type WorldStateRow struct {
	CurrentTick        int64 `db:"current_tick"`
	IsPaused           bool  `db:"is_paused"`
	GlobalEventVersion int64 `db:"global_event_version"`
}

// AdvanceTick sets current_tick. Called exactly once per tick commit.
func (s *Store) AdvanceTick(tick int64) error {
	_, err := s.conn.Exec(`UPDATE world_state SET current_tick = ? WHERE id = 1`, tick)
	return storageErr("advance tick", err)
}

// PauseWorld marks the world paused.
func (s *Store) PauseWorld() error {
	_, err := s.conn.Exec(`UPDATE world_state SET is_paused = 1 WHERE id = 1`)
	return storageErr("pause world", err)
}

// ResumeWorld clears the paused flag.
func (s *Store) ResumeWorld() error {
	_, err := s.conn.Exec(`UPDATE world_state SET is_paused = 0 WHERE id = 1`)
	return storageErr("resume world", err)
}

// ResetWorldData clears every entity table but keeps the store itself (and
// the event log's durable high-water mark: events survive so version
// monotonicity holds across resets).
func (s *Store) ResetWorldData() error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return storageErr("reset begin", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"agents", "resource_spawns", "shelters", "inventories",
		"agent_memories", "agent_knowledge",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return storageErr("reset "+table, err)
		}
	}
	// The agents these keys were bound to are gone; retire the registrations
	// so the keys stop resolving.
	if _, err := tx.Exec(`UPDATE external_agents SET is_active = 0`); err != nil {
		return storageErr("reset external agents", err)
	}
	if _, err := tx.Exec(`UPDATE world_state SET current_tick = 0, is_paused = 0 WHERE id = 1`); err != nil {
		return storageErr("reset world state", err)
	}
	return storageErr("reset commit", tx.Commit())
}
