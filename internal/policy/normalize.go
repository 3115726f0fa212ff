package policy

import (
	"context"
	"time"
)

// Normalizer levels the playing field between model providers. Faster models
// wait until a per-policy latency floor has elapsed; verbose models get
// their token budget capped. Disabled, both knobs are no-ops.
type Normalizer struct {
	Enabled      bool
	LatencyFloor map[string]time.Duration
	MaxTokens    map[string]int
}

// NewNormalizer builds a normalizer with no per-policy overrides.
func NewNormalizer(enabled bool) *Normalizer {
	return &Normalizer{
		Enabled:      enabled,
		LatencyFloor: map[string]time.Duration{},
		MaxTokens:    map[string]int{},
	}
}

// TokenCap returns the effective max token budget for a policy type.
func (n *Normalizer) TokenCap(policyType string, requested int) int {
	if n == nil || !n.Enabled {
		return requested
	}
	if cap, ok := n.MaxTokens[policyType]; ok && cap > 0 && cap < requested {
		return cap
	}
	return requested
}

// WaitFloor blocks until the policy's latency floor has elapsed, measured
// from the start of the model call. Returns the context error if cancelled
// while waiting.
func (n *Normalizer) WaitFloor(ctx context.Context, policyType string, elapsed time.Duration) error {
	if n == nil || !n.Enabled {
		return nil
	}
	floor, ok := n.LatencyFloor[policyType]
	if !ok || elapsed >= floor {
		return nil
	}

	t := time.NewTimer(floor - elapsed)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
