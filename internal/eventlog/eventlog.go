// Package eventlog provides the append-only world event log. Every committed
// event carries a globally monotonic, gap-free version number that survives
// restarts: the in-memory counter is re-seeded from the durable maximum
// before the engine accepts new events.
package eventlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/gridworld/internal/sim"
)

// Log appends and reads world events.
type Log struct {
	conn *sqlx.DB

	// mu serializes version assignment with the durable write so versions
	// commit in order with no gaps.
	mu          sync.Mutex
	version     int64
	initialized bool
}

// New creates a Log over the shared world database connection.
func New(conn *sqlx.DB) *Log {
	return &Log{conn: conn}
}

// InitGlobalVersion recovers the high-water mark from the persisted log and
// re-seeds the counter. Must run before any Append on startup.
func (l *Log) InitGlobalVersion() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var maxVersion int64
	if err := l.conn.Get(&maxVersion,
		`SELECT COALESCE(MAX(version), 0) FROM events`); err != nil {
		return fmt.Errorf("recover event version: %w", err)
	}
	l.version = maxVersion
	l.initialized = true
	return nil
}

// Version returns the largest committed version.
func (l *Log) Version() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Append durably commits one event and returns its assigned version. The
// event row and the world_state high-water mark move in one transaction.
func (l *Log) Append(tick int64, ev sim.Event) (sim.WorldEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return sim.WorldEvent{}, fmt.Errorf("event log not initialized")
	}

	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return sim.WorldEvent{}, fmt.Errorf("marshal payload: %w", err)
	}

	version := l.version + 1
	createdAt := time.Now().UTC()

	tx, err := l.conn.Beginx()
	if err != nil {
		return sim.WorldEvent{}, fmt.Errorf("append begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO events (version, tick, type, agent_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		version, tick, ev.Type, ev.AgentID, string(payloadJSON), createdAt); err != nil {
		return sim.WorldEvent{}, fmt.Errorf("append insert: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE world_state SET global_event_version = ? WHERE id = 1`, version); err != nil {
		return sim.WorldEvent{}, fmt.Errorf("append high-water: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return sim.WorldEvent{}, fmt.Errorf("append commit: %w", err)
	}

	l.version = version
	return sim.WorldEvent{
		Version:   version,
		Tick:      tick,
		Type:      ev.Type,
		AgentID:   ev.AgentID,
		Payload:   payload,
		CreatedAt: createdAt,
	}, nil
}

// eventRow is the persisted shape; payload is stored as JSON text.
type eventRow struct {
	Version   int64     `db:"version"`
	Tick      int64     `db:"tick"`
	Type      string    `db:"type"`
	AgentID   *string   `db:"agent_id"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (r eventRow) toEvent() sim.WorldEvent {
	var payload map[string]any
	_ = json.Unmarshal([]byte(r.Payload), &payload)
	return sim.WorldEvent{
		Version:   r.Version,
		Tick:      r.Tick,
		Type:      r.Type,
		AgentID:   r.AgentID,
		Payload:   payload,
		CreatedAt: r.CreatedAt,
	}
}

func toEvents(rows []eventRow) []sim.WorldEvent {
	out := make([]sim.WorldEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEvent())
	}
	return out
}

// GetRecentEvents returns the newest events, newest first.
func (l *Log) GetRecentEvents(limit int) ([]sim.WorldEvent, error) {
	var rows []eventRow
	err := l.conn.Select(&rows,
		`SELECT * FROM events ORDER BY version DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return toEvents(rows), nil
}

// GetEventsAtTick returns every event committed at one tick, in version order.
func (l *Log) GetEventsAtTick(tick int64) ([]sim.WorldEvent, error) {
	var rows []eventRow
	err := l.conn.Select(&rows,
		`SELECT * FROM events WHERE tick = ? ORDER BY version`, tick)
	if err != nil {
		return nil, fmt.Errorf("events at tick: %w", err)
	}
	return toEvents(rows), nil
}

// GetEventsInRange returns events with from ≤ tick ≤ to, version order,
// capped at limit.
func (l *Log) GetEventsInRange(from, to int64, limit int) ([]sim.WorldEvent, error) {
	var rows []eventRow
	err := l.conn.Select(&rows,
		`SELECT * FROM events WHERE tick >= ? AND tick <= ? ORDER BY version LIMIT ?`,
		from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("events in range: %w", err)
	}
	return toEvents(rows), nil
}

// GetAgentTimeline returns the newest events involving one agent.
func (l *Log) GetAgentTimeline(agentID string, limit int) ([]sim.WorldEvent, error) {
	var rows []eventRow
	err := l.conn.Select(&rows,
		`SELECT * FROM events WHERE agent_id = ? ORDER BY version DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("agent timeline: %w", err)
	}
	return toEvents(rows), nil
}

// TickSummaries returns per-tick event counts for the replay index, oldest
// first, capped at limit.
func (l *Log) TickSummaries(limit int) ([]TickSummary, error) {
	var out []TickSummary
	err := l.conn.Select(&out, `SELECT tick, COUNT(*) AS event_count,
		MIN(version) AS first_version, MAX(version) AS last_version
		FROM events GROUP BY tick ORDER BY tick LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("tick summaries: %w", err)
	}
	return out, nil
}

// TickSummary is one row of the replay index.
type TickSummary struct {
	Tick         int64 `db:"tick" json:"tick"`
	EventCount   int   `db:"event_count" json:"eventCount"`
	FirstVersion int64 `db:"first_version" json:"firstVersion"`
	LastVersion  int64 `db:"last_version" json:"lastVersion"`
}
