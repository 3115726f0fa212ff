package policy

import (
	"context"
	"fmt"

	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/sim"
)

// ScriptedAdapter answers every observation from the deterministic fallback
// policy without any model call. Registered for all policy types in test
// mode, where runs must be reproducible and offline.
type ScriptedAdapter struct {
	policyType string
	rng        *entropy.Source
}

// NewScriptedAdapter creates a scripted adapter for one policy type.
func NewScriptedAdapter(policyType string, rng *entropy.Source) *ScriptedAdapter {
	return &ScriptedAdapter{policyType: policyType, rng: rng}
}

func (a *ScriptedAdapter) PolicyType() string { return a.policyType }

func (a *ScriptedAdapter) IsAvailable() bool { return true }

// Decide returns the fallback decision for the observation. The RNG is
// derived per (tick, agent) so concurrent workers cannot perturb the draw
// sequence between runs.
func (a *ScriptedAdapter) Decide(_ context.Context, obs sim.Observation) (sim.Decision, error) {
	return Fallback(obs, a.rng.Derived(obs.Tick, obs.Self.ID)), nil
}

// CallWithRawPrompt is unsupported for scripted policies.
func (a *ScriptedAdapter) CallWithRawPrompt(context.Context, string, CallOptions) (RawResult, error) {
	return RawResult{}, fmt.Errorf("scripted policy %q has no raw prompt support", a.policyType)
}
