package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/talgya/gridworld/internal/sim"
)

// ResponseCache stores parsed, validated policy decisions keyed by
// (policyType, observation fingerprint). A hit is functionally substitutable
// for a fresh call: the stored decision already passed schema validation and
// is re-validated by the caller on the hit path too.
type ResponseCache struct {
	kv  KV
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResponseCache creates the LLM response cache. ttl defaults to 7 days.
func NewResponseCache(kv KV, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ResponseCache{kv: kv, ttl: ttl}
}

func llmKey(policyType, fingerprint string) string {
	return prefixLLM + policyType + ":" + fingerprint
}

// Get returns the cached decision for a fingerprint, if any.
func (c *ResponseCache) Get(ctx context.Context, policyType, fingerprint string) (sim.Decision, bool) {
	raw, ok, err := c.kv.Get(ctx, llmKey(policyType, fingerprint))
	if err != nil || !ok {
		c.misses.Add(1)
		return sim.Decision{}, false
	}
	var d sim.Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		c.misses.Add(1)
		return sim.Decision{}, false
	}
	c.hits.Add(1)
	return d, true
}

// Put stores a decision. Concurrent writes for the same fingerprint are
// last-writer-wins; the decisions are semantically equivalent.
func (c *ResponseCache) Put(ctx context.Context, policyType, fingerprint string, d sim.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, llmKey(policyType, fingerprint), string(data), c.ttl)
}

// Stats reports hit/miss counts.
func (c *ResponseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// GenesisCache stores LLM meta-generation results so re-running genesis for
// the same inputs is free.
type GenesisCache struct {
	kv      KV
	enabled bool
	ttl     time.Duration
	prefix  string
}

// NewGenesisCache creates the genesis cache.
func NewGenesisCache(kv KV, enabled bool, ttl time.Duration, prefix string) *GenesisCache {
	if prefix == "" {
		prefix = prefixGenesis
	} else if prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
	return &GenesisCache{kv: kv, enabled: enabled, ttl: ttl, prefix: prefix}
}

// Get returns the cached genesis result for (policyType, hash).
func (g *GenesisCache) Get(ctx context.Context, policyType, hash string) (string, bool) {
	if !g.enabled {
		return "", false
	}
	raw, ok, err := g.kv.Get(ctx, g.prefix+policyType+":"+hash)
	if err != nil || !ok {
		return "", false
	}
	return raw, true
}

// Put stores a genesis result.
func (g *GenesisCache) Put(ctx context.Context, policyType, hash, result string) error {
	if !g.enabled {
		return nil
	}
	return g.kv.Set(ctx, g.prefix+policyType+":"+hash, result, g.ttl)
}
