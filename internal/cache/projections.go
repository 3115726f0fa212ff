package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/talgya/gridworld/internal/sim"
)

// Projections maintains the derived read models: the recent-events list and
// the lazily rebuilt world snapshot.
type Projections struct {
	kv    KV
	limit int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewProjections creates the projection layer. limit bounds the
// recent-events list.
func NewProjections(kv KV, limit int) *Projections {
	if limit <= 0 {
		limit = 100
	}
	return &Projections{kv: kv, limit: limit}
}

// PushEvent prepends a committed event to the recent-events projection,
// trimming to the bound, and invalidates the world snapshot.
func (p *Projections) PushEvent(ctx context.Context, ev sim.WorldEvent) error {
	recent, err := p.RecentEvents(ctx)
	if err != nil {
		recent = nil
	}
	recent = append([]sim.WorldEvent{ev}, recent...)
	if len(recent) > p.limit {
		recent = recent[:p.limit]
	}

	data, err := json.Marshal(recent)
	if err != nil {
		return fmt.Errorf("marshal recent events: %w", err)
	}
	if err := p.kv.Set(ctx, keyRecentEvents, string(data), 0); err != nil {
		return err
	}
	return p.InvalidateSnapshot(ctx)
}

// RecentEvents returns the bounded recent-events list, newest first.
func (p *Projections) RecentEvents(ctx context.Context) ([]sim.WorldEvent, error) {
	raw, ok, err := p.kv.Get(ctx, keyRecentEvents)
	if err != nil || !ok {
		return nil, err
	}
	var out []sim.WorldEvent
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("unmarshal recent events: %w", err)
	}
	return out, nil
}

// WorldSnapshot is the cached full-world read model.
type WorldSnapshot struct {
	Tick           int64                `json:"tick"`
	Agents         []*sim.Agent         `json:"agents"`
	ResourceSpawns []*sim.ResourceSpawn `json:"resourceSpawns"`
	Shelters       []*sim.Shelter       `json:"shelters"`
}

// Snapshot returns the cached world snapshot, or ok=false after
// invalidation (callers rebuild from the store and call SetSnapshot).
func (p *Projections) Snapshot(ctx context.Context) (WorldSnapshot, bool, error) {
	raw, ok, err := p.kv.Get(ctx, keyWorldSnapshot)
	if err != nil || !ok {
		p.misses.Add(1)
		return WorldSnapshot{}, false, err
	}
	var snap WorldSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		p.misses.Add(1)
		return WorldSnapshot{}, false, nil
	}
	p.hits.Add(1)
	return snap, true, nil
}

// SetSnapshot stores a freshly rebuilt snapshot.
func (p *Projections) SetSnapshot(ctx context.Context, snap WorldSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return p.kv.Set(ctx, keyWorldSnapshot, string(data), 0)
}

// InvalidateSnapshot drops the cached snapshot after any entity mutation.
func (p *Projections) InvalidateSnapshot(ctx context.Context) error {
	return p.kv.Delete(ctx, keyWorldSnapshot)
}

// Clear flushes every projection key. Must run before InitWorldState on
// reset so readers never see stale entities.
func (p *Projections) Clear(ctx context.Context) error {
	return p.kv.DeletePrefix(ctx, prefixProjection)
}

// Stats reports snapshot hit/miss counts for the status endpoint.
func (p *Projections) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}
