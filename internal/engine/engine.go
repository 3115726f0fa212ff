// Package engine runs the tick loop: snapshot, parallel decisions, serial
// application, environment pass, commit. One engine instance owns all agent
// mutation; everything else observes through the store, the event log, or
// the bus.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/gridworld/internal/bus"
	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/eventlog"
	"github.com/talgya/gridworld/internal/observe"
	"github.com/talgya/gridworld/internal/policy"
	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

// State is the engine lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

// ExperimentContext binds the engine to a running variant. The engine stops
// itself when the variant's duration elapses.
type ExperimentContext struct {
	ExperimentID  string
	VariantID     string
	StartTick     int64
	DurationTicks int64
}

// Engine drives the simulation.
type Engine struct {
	cfg         *config.Config
	store       *store.Store
	log         *eventlog.Log
	projections *cache.Projections
	bus         *bus.Bus
	registry    *policy.Registry
	rng         *entropy.Source
	builder     *observe.Builder

	mu      sync.Mutex
	state   State
	tick    int64
	stopCh  chan struct{}
	doneCh  chan struct{}
	expCtx  *ExperimentContext
	started time.Time

	// applyMu serializes the application phase with external agent decides.
	applyMu sync.Mutex

	// OnVariantExpired is invoked (on its own goroutine) after the engine
	// stops at the end of a variant's duration.
	OnVariantExpired func(ctx ExperimentContext, endTick int64)
}

// New wires an engine. The registry must already hold an adapter per policy
// type in use.
func New(cfg *config.Config, st *store.Store, log *eventlog.Log, proj *cache.Projections,
	b *bus.Bus, reg *policy.Registry, rng *entropy.Source) *Engine {
	return &Engine{
		cfg:         cfg,
		store:       st,
		log:         log,
		projections: proj,
		bus:         b,
		registry:    reg,
		rng:         rng,
		builder: observe.NewBuilder(cfg.VisibilityRadius, cfg.VisibilityMetric,
			sim.Size{Width: cfg.WorldWidth, Height: cfg.WorldHeight}),
		state: StateStopped,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tick returns the last committed tick.
func (e *Engine) Tick() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Uptime returns how long the engine has been running, zero when stopped.
func (e *Engine) Uptime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateStopped {
		return 0
	}
	return time.Since(e.started)
}

// SetExperimentContext binds a variant before Start. Fails while running.
func (e *Engine) SetExperimentContext(ctx ExperimentContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateStopped {
		return fmt.Errorf("engine is %s, cannot bind variant", e.state)
	}
	e.expCtx = &ctx
	return nil
}

// ClearExperimentContext unbinds the variant.
func (e *Engine) ClearExperimentContext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expCtx = nil
}

// ExperimentContextSnapshot returns the bound variant, if any.
func (e *Engine) ExperimentContextSnapshot() *ExperimentContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.expCtx == nil {
		return nil
	}
	cp := *e.expCtx
	return &cp
}

// Start launches the tick loop. Idempotent when already running.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine is %s, not stopped", e.state)
	}
	e.state = StateStarting
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	ws, err := e.store.GetWorldState()
	if err != nil {
		e.mu.Lock()
		e.state = StateStopped
		e.mu.Unlock()
		return fmt.Errorf("load world state: %w", err)
	}

	e.mu.Lock()
	e.tick = ws.CurrentTick
	e.state = StateRunning
	e.started = time.Now()
	if ws.IsPaused {
		e.state = StatePaused
	}
	e.mu.Unlock()

	go e.loop()
	slog.Info("engine started", "tick", ws.CurrentTick, "interval", e.cfg.TickInterval)
	return nil
}

// Stop halts the loop and waits for the in-flight tick to finish. Safe to
// call at any time, including from within variant expiry.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateStopped || e.state == StateStopping {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	stop, done := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stop)
	<-done

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()
	slog.Info("engine stopped", "tick", e.Tick())
}

// Pause suspends tick processing without tearing the loop down.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("engine is %s, not running", e.state)
	}
	e.state = StatePaused
	return e.store.PauseWorld()
}

// Resume continues a paused engine.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("engine is %s, not paused", e.state)
	}
	e.state = StateRunning
	return e.store.ResumeWorld()
}

// loop paces ticks at the configured interval floor: a slow tick starts the
// next one immediately, a fast tick waits out the remainder.
func (e *Engine) loop() {
	defer close(e.doneCh)

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		start := time.Now()
		if e.State() == StateRunning {
			switch err := e.runTick(); {
			case errors.Is(err, errVariantComplete):
				e.mu.Lock()
				ec := e.expCtx
				endTick := e.tick
				e.state = StateStopped
				e.mu.Unlock()
				if ec != nil && e.OnVariantExpired != nil {
					go e.OnVariantExpired(*ec, endTick)
				}
				return
			case err != nil:
				slog.Error("tick aborted, pausing engine", "error", err)
				e.mu.Lock()
				e.state = StatePaused
				e.mu.Unlock()
				if perr := e.store.PauseWorld(); perr != nil {
					slog.Error("pause after tick failure", "error", perr)
				}
			}
		}

		remaining := e.cfg.TickInterval - time.Since(start)
		if remaining <= 0 {
			continue
		}
		select {
		case <-e.stopCh:
			return
		case <-time.After(remaining):
		}
	}
}

// stopSignal returns the current stop channel, nil before Start.
func (e *Engine) stopSignal() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCh
}

// emit commits one event to the log, the projections, and the bus.
func (e *Engine) emit(tick int64, ev sim.Event) error {
	committed, err := e.log.Append(tick, ev)
	if err != nil {
		return err
	}
	if err := e.projections.PushEvent(context.Background(), committed); err != nil {
		slog.Warn("projection push failed", "type", ev.Type, "error", err)
	}
	e.bus.Publish(committed)
	return nil
}
