package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/talgya/gridworld/internal/cache"
)

// Genesis generates world-building text (agent personalities, location
// flavor) through an adapter's raw prompt path.
type Genesis interface {
	Generate(ctx context.Context, kind, prompt string) (string, error)
}

// CachedGenesis wraps an adapter with the genesis cache so repeated
// generation for identical inputs never re-calls the model.
type CachedGenesis struct {
	adapter Adapter
	cache   *cache.GenesisCache
}

// NewCachedGenesis builds a genesis generator. cache may be nil.
func NewCachedGenesis(adapter Adapter, gc *cache.GenesisCache) *CachedGenesis {
	return &CachedGenesis{adapter: adapter, cache: gc}
}

// Generate returns model output for a genesis prompt, cached by content hash.
func (g *CachedGenesis) Generate(ctx context.Context, kind, prompt string) (string, error) {
	sum := sha256.Sum256([]byte(kind + "\x00" + prompt))
	hash := hex.EncodeToString(sum[:])

	if g.cache != nil {
		if out, ok := g.cache.Get(ctx, g.adapter.PolicyType(), hash); ok {
			return out, nil
		}
	}

	if !g.adapter.IsAvailable() {
		return "", fmt.Errorf("genesis: adapter %q unavailable", g.adapter.PolicyType())
	}
	raw, err := g.adapter.CallWithRawPrompt(ctx, prompt, CallOptions{MaxTokens: 512})
	if err != nil {
		return "", fmt.Errorf("genesis %s: %w", kind, err)
	}
	out := strings.TrimSpace(raw.Response)

	if g.cache != nil {
		if err := g.cache.Put(ctx, g.adapter.PolicyType(), hash, out); err != nil {
			return out, nil
		}
	}
	return out, nil
}
