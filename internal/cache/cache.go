// Package cache holds the derived projections and LLM response caches. The
// backing store is Redis when REDIS_URL is configured and an in-process map
// otherwise; both sit behind the same KV interface. The cache is never the
// source of truth — on reset it is flushed before the world re-initializes.
package cache

import (
	"context"
	"time"
)

// KV is the minimal key-value contract the cache layers need.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key with the given prefix. Used on world
	// reset and projection invalidation.
	DeletePrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// Key prefixes. Response and genesis cache keys embed the policy type so
// per-policy flushes stay cheap.
const (
	prefixProjection = "projection:"
	prefixLLM        = "llm-cache:"
	prefixGenesis    = "genesis-cache:"

	keyRecentEvents  = prefixProjection + "recent-events"
	keyWorldSnapshot = prefixProjection + "world-snapshot"
)
