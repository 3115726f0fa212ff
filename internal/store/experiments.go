package store

import (
	"database/sql"
	"errors"
	"time"
)

// Experiment lifecycle statuses.
const (
	ExperimentPlanning  = "planning"
	ExperimentRunning   = "running"
	ExperimentCompleted = "completed"
)

// Variant statuses mirror the experiment's, plus pending (not yet started).
const (
	VariantPending   = "pending"
	VariantRunning   = "running"
	VariantCompleted = "completed"
)

// Experiment is a sequence of variants to run against the world.
type Experiment struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Variant is one configured run: its own seed, duration, overrides, and
// agent roster.
type Variant struct {
	ID              string `db:"id" json:"id"`
	ExperimentID    string `db:"experiment_id" json:"experimentId"`
	Name            string `db:"name" json:"name"`
	Status          string `db:"status" json:"status"`
	ConfigOverrides string `db:"config_overrides" json:"configOverrides"`
	AgentConfigs    string `db:"agent_configs" json:"agentConfigs"`
	WorldSeed       int64  `db:"world_seed" json:"worldSeed"`
	DurationTicks   int64  `db:"duration_ticks" json:"durationTicks"`
	StartTick       *int64 `db:"start_tick" json:"startTick,omitempty"`
	EndTick         *int64 `db:"end_tick" json:"endTick,omitempty"`
	Position        int    `db:"position" json:"position"`
}

// CreateExperiment inserts a new experiment in planning state.
func (s *Store) CreateExperiment(e *Experiment) error {
	_, err := s.conn.NamedExec(`INSERT INTO experiments (id, name, status, created_at)
		VALUES (:id, :name, :status, :created_at)`, e)
	return storageErr("create experiment", err)
}

// GetExperiment returns one experiment.
func (s *Store) GetExperiment(id string) (*Experiment, error) {
	var e Experiment
	err := s.conn.Get(&e, `SELECT * FROM experiments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get experiment", err)
	}
	return &e, nil
}

// ListExperiments returns all experiments, newest first.
func (s *Store) ListExperiments() ([]*Experiment, error) {
	var out []*Experiment
	err := s.conn.Select(&out, `SELECT * FROM experiments ORDER BY created_at DESC`)
	return out, storageErr("list experiments", err)
}

// DeleteExperiment removes an experiment and its variants and snapshots.
func (s *Store) DeleteExperiment(id string) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return storageErr("delete experiment begin", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete experiment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM experiment_snapshots WHERE variant_id IN
		(SELECT id FROM experiment_variants WHERE experiment_id = ?)`, id); err != nil {
		return storageErr("delete snapshots", err)
	}
	if _, err := tx.Exec(`DELETE FROM experiment_variants WHERE experiment_id = ?`, id); err != nil {
		return storageErr("delete variants", err)
	}
	return storageErr("delete experiment commit", tx.Commit())
}

// UpdateExperimentStatus transitions an experiment's status.
func (s *Store) UpdateExperimentStatus(id, status string) error {
	_, err := s.conn.Exec(`UPDATE experiments SET status = ? WHERE id = ?`, status, id)
	return storageErr("update experiment status", err)
}

// AddVariant appends a variant to an experiment's sequence.
func (s *Store) AddVariant(v *Variant) error {
	_, err := s.conn.NamedExec(`INSERT INTO experiment_variants
		(id, experiment_id, name, status, config_overrides, agent_configs,
		 world_seed, duration_ticks, start_tick, end_tick, position)
		VALUES (:id, :experiment_id, :name, :status, :config_overrides, :agent_configs,
		 :world_seed, :duration_ticks, :start_tick, :end_tick, :position)`, v)
	return storageErr("add variant", err)
}

// GetVariant returns one variant.
func (s *Store) GetVariant(id string) (*Variant, error) {
	var v Variant
	err := s.conn.Get(&v, `SELECT * FROM experiment_variants WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get variant", err)
	}
	return &v, nil
}

// ListVariants returns an experiment's variants in sequence order.
func (s *Store) ListVariants(experimentID string) ([]*Variant, error) {
	var out []*Variant
	err := s.conn.Select(&out, `SELECT * FROM experiment_variants
		WHERE experiment_id = ? ORDER BY position`, experimentID)
	return out, storageErr("list variants", err)
}

// NextPendingVariant returns the first variant still pending for an
// experiment, or ErrNotFound when none remain.
func (s *Store) NextPendingVariant(experimentID string) (*Variant, error) {
	var v Variant
	err := s.conn.Get(&v, `SELECT * FROM experiment_variants
		WHERE experiment_id = ? AND status = ? ORDER BY position LIMIT 1`,
		experimentID, VariantPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("next pending variant", err)
	}
	return &v, nil
}

// RunningVariant returns the currently running variant across all
// experiments, or ErrNotFound. At most one exists at any instant.
func (s *Store) RunningVariant() (*Variant, error) {
	var v Variant
	err := s.conn.Get(&v,
		`SELECT * FROM experiment_variants WHERE status = ? LIMIT 1`, VariantRunning)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("running variant", err)
	}
	return &v, nil
}

// MarkVariantRunning transitions a variant to running and records its start
// tick.
func (s *Store) MarkVariantRunning(id string, startTick int64) error {
	_, err := s.conn.Exec(`UPDATE experiment_variants
		SET status = ?, start_tick = ? WHERE id = ?`, VariantRunning, startTick, id)
	return storageErr("mark variant running", err)
}

// MarkVariantCompleted transitions a variant to completed with its end tick.
func (s *Store) MarkVariantCompleted(id string, endTick int64) error {
	_, err := s.conn.Exec(`UPDATE experiment_variants
		SET status = ?, end_tick = ? WHERE id = ?`, VariantCompleted, endTick, id)
	return storageErr("mark variant completed", err)
}

// SaveSnapshot persists a variant's end-of-run world snapshot.
func (s *Store) SaveSnapshot(id, variantID string, tick int64, snapshot string) error {
	_, err := s.conn.Exec(`INSERT INTO experiment_snapshots
		(id, variant_id, tick, snapshot, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, variantID, tick, snapshot, time.Now().UTC())
	return storageErr("save snapshot", err)
}

// GetSnapshot returns the stored snapshot JSON for a variant.
func (s *Store) GetSnapshot(variantID string) (string, error) {
	var snap string
	err := s.conn.Get(&snap, `SELECT snapshot FROM experiment_snapshots
		WHERE variant_id = ? ORDER BY created_at DESC LIMIT 1`, variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return snap, storageErr("get snapshot", err)
}
