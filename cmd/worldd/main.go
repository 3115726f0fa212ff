// Command worldd runs the grid world simulation server: tick engine, event
// log, projection cache, LLM policy adapters, and the HTTP/SSE surface.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/talgya/gridworld/internal/api"
	"github.com/talgya/gridworld/internal/bus"
	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/engine"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/eventlog"
	"github.com/talgya/gridworld/internal/experiment"
	"github.com/talgya/gridworld/internal/gateway"
	"github.com/talgya/gridworld/internal/policy"
	"github.com/talgya/gridworld/internal/store"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.InitWorldState(); err != nil {
		return err
	}

	log := eventlog.New(st.DB())
	if err := log.InitGlobalVersion(); err != nil {
		return err
	}

	var kv cache.KV
	if cfg.RedisURL != "" {
		rkv, err := cache.NewRedisKV(cfg.RedisURL)
		if err != nil {
			return err
		}
		kv = rkv
		slog.Info("cache backend: redis")
	} else {
		kv = cache.NewMemoryKV()
		slog.Info("cache backend: in-memory")
	}

	projections := cache.NewProjections(kv, cfg.RecentEventsLimit)
	respCache := cache.NewResponseCache(kv, cfg.LLMCacheTTL)

	rng := entropy.NewSource(cfg.WorldSeed)
	b := bus.New()

	registry := buildRegistry(cfg, respCache, rng)

	var genesis policy.Genesis
	if a, err := registry.Get("anthropic"); err == nil {
		gc := cache.NewGenesisCache(kv, cfg.GenesisCacheEnabled, cfg.GenesisCacheTTL, cfg.GenesisCachePrefix)
		genesis = policy.NewCachedGenesis(a, gc)
	}

	eng := engine.New(cfg, st, log, projections, b, registry, rng)
	ctrl := experiment.NewController(cfg, st, eng, projections, rng, func() []string {
		var out []string
		for _, pt := range registry.PolicyTypes() {
			if pt != engine.PolicyExternal {
				out = append(out, pt)
			}
		}
		return out
	}, genesis)
	gw := gateway.New(cfg, st, eng, log)

	srv := api.New(cfg, st, log, projections, respCache, b, eng, ctrl, gw, registry, rng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)
	eng.Stop()
	return err
}

// buildRegistry wires one adapter per policy type. In test mode every type
// is scripted (deterministic fallback, no network); otherwise LLM adapters
// are registered and report unavailable until their API keys are set.
func buildRegistry(cfg *config.Config, respCache *cache.ResponseCache, rng *entropy.Source) *policy.Registry {
	registry := policy.NewRegistry()

	if cfg.TestMode {
		for _, pt := range []string{"anthropic", "openai", "fallback"} {
			registry.Register(policy.NewScriptedAdapter(pt, rng))
		}
		slog.Info("test mode: scripted adapters only")
		return registry
	}

	norm := policy.NewNormalizer(cfg.CapabilityNormalization)
	var vocab *policy.Vocabulary
	if cfg.SyntheticVocabulary {
		vocab = policy.NewVocabulary(nil)
	}

	registry.Register(policy.NewLLMAdapter("anthropic",
		policy.NewAnthropicClient(cfg.AnthropicAPIKey, ""), respCache, norm, vocab, rng))
	registry.Register(policy.NewLLMAdapter("openai",
		policy.NewOpenAIClient(cfg.OpenAIAPIKey, ""), respCache, norm, vocab, rng))
	registry.Register(policy.NewScriptedAdapter("fallback", rng))
	return registry
}
