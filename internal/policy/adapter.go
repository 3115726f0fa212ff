// Package policy provides the uniform contract over heterogeneous LLM
// decision policies: per-provider adapters, the response cache path,
// capability normalization, synthetic vocabulary substitution, and the
// deterministic fallback.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/sim"
)

// RawResult is the raw model output from a direct prompt call.
type RawResult struct {
	Response     string `json:"response"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
}

// CallOptions tunes a raw prompt call.
type CallOptions struct {
	System    string
	MaxTokens int
}

// Adapter is the uniform decision contract. One adapter serves one policy
// type; new policy types register a new implementation, no inheritance tree.
type Adapter interface {
	PolicyType() string
	// Decide returns the decision for an observation. It never returns an
	// invalid decision: adapter errors, unparseable output, and schema
	// failures all degrade to the deterministic fallback.
	Decide(ctx context.Context, obs sim.Observation) (sim.Decision, error)
	IsAvailable() bool
	CallWithRawPrompt(ctx context.Context, prompt string, opts CallOptions) (RawResult, error)
}

// ModelClient is the narrow provider surface an LLMAdapter drives. Satisfied
// by the Anthropic and OpenAI clients, and by mocks in tests.
type ModelClient interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (RawResult, error)
	Available() bool
}

// LLMAdapter implements Adapter over any ModelClient with the shared decide
// pipeline: fingerprint → cache → prompt → call → normalize → parse →
// validate → cache insert, falling back deterministically at every failure
// point.
type LLMAdapter struct {
	policyType string
	client     ModelClient
	cache      *cache.ResponseCache
	normalizer *Normalizer
	vocab      *Vocabulary
	rng        *entropy.Source
	maxTokens  int
}

// NewLLMAdapter wires a decide pipeline for one policy type. cache and vocab
// may be nil (no caching / no substitution).
func NewLLMAdapter(policyType string, client ModelClient, respCache *cache.ResponseCache,
	norm *Normalizer, vocab *Vocabulary, rng *entropy.Source) *LLMAdapter {
	return &LLMAdapter{
		policyType: policyType,
		client:     client,
		cache:      respCache,
		normalizer: norm,
		vocab:      vocab,
		rng:        rng,
		maxTokens:  1024,
	}
}

// PolicyType returns the policy type this adapter serves.
func (a *LLMAdapter) PolicyType() string { return a.policyType }

// IsAvailable reports whether the underlying model can be called.
func (a *LLMAdapter) IsAvailable() bool { return a.client.Available() }

// Decide runs the full decision pipeline for one observation.
func (a *LLMAdapter) Decide(ctx context.Context, obs sim.Observation) (sim.Decision, error) {
	fp := Fingerprint(a.policyType, obs)

	// Cache hit: the stored decision is substitutable for a fresh call, and
	// it goes through the same validation as the miss path.
	if a.cache != nil {
		if d, ok := a.cache.Get(ctx, a.policyType, fp); ok {
			if err := sim.ValidateDecision(d); err == nil {
				return d, nil
			}
		}
	}

	system, user := BuildPrompt(obs, a.vocab)

	maxTokens := a.maxTokens
	if a.normalizer != nil {
		maxTokens = a.normalizer.TokenCap(a.policyType, maxTokens)
	}

	start := time.Now()
	raw, err := a.client.Complete(ctx, system, user, maxTokens)
	if err != nil {
		slog.Debug("adapter call failed, using fallback",
			"policy_type", a.policyType, "error", err)
		return Fallback(obs, a.rng.Derived(obs.Tick, obs.Self.ID)), nil
	}
	if a.normalizer != nil {
		if err := a.normalizer.WaitFloor(ctx, a.policyType, time.Since(start)); err != nil {
			return Fallback(obs, a.rng.Derived(obs.Tick, obs.Self.ID)), nil
		}
	}

	text := raw.Response
	if a.vocab != nil {
		text = a.vocab.Reverse(text)
	}

	decision, err := ParseDecision(text)
	if err != nil {
		// Fallbacks are never cached so the policy gets a clean retry on
		// the next tick.
		slog.Debug("adapter response rejected, using fallback",
			"policy_type", a.policyType, "error", err)
		return Fallback(obs, a.rng.Derived(obs.Tick, obs.Self.ID)), nil
	}

	if a.cache != nil {
		if err := a.cache.Put(ctx, a.policyType, fp, decision); err != nil {
			slog.Warn("response cache write failed", "policy_type", a.policyType, "error", err)
		}
	}
	return decision, nil
}

// CallWithRawPrompt issues a direct prompt call, bypassing the decide
// pipeline. Used by genesis and diagnostics.
func (a *LLMAdapter) CallWithRawPrompt(ctx context.Context, prompt string, opts CallOptions) (RawResult, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	if a.normalizer != nil {
		maxTokens = a.normalizer.TokenCap(a.policyType, maxTokens)
	}
	return a.client.Complete(ctx, opts.System, prompt, maxTokens)
}

// Registry maps policy types to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds an adapter to its policy type.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.PolicyType()] = a
}

// Get returns the adapter for a policy type.
func (r *Registry) Get(policyType string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[policyType]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for policy type %q", policyType)
	}
	return a, nil
}

// PolicyTypes returns the registered types, sorted.
func (r *Registry) PolicyTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
