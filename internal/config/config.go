// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the engine, caches, and API need at startup.
type Config struct {
	Port         int
	DatabasePath string
	RedisURL     string
	LogLevel     slog.Level

	// World shape and determinism.
	WorldSeed   int64
	WorldWidth  int
	WorldHeight int
	AgentCount  int

	// Tick pacing and the decision phase.
	TickInterval    time.Duration
	WorkerCount     int
	DecisionTimeout time.Duration

	// Observation limits.
	VisibilityRadius int
	VisibilityMetric string // "chebyshev" or "euclidean"
	WitnessRadius    int

	// Environment pass rates (per tick).
	HungerDecay float64
	EnergyDecay float64
	HealthBleed float64

	// Projections.
	RecentEventsLimit int

	// LLM layer.
	AnthropicAPIKey         string
	OpenAIAPIKey            string
	LLMCacheTTL             time.Duration
	CapabilityNormalization bool
	SyntheticVocabulary     bool
	TestMode                bool

	// Genesis cache.
	GenesisCacheEnabled bool
	GenesisCacheTTL     time.Duration
	GenesisCachePrefix  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("no .env file loaded", "error", err)
	}

	return &Config{
		Port:         envInt("PORT", 3000),
		DatabasePath: envStr("DATABASE_PATH", "data/world.db"),
		RedisURL:     envStr("REDIS_URL", ""),
		LogLevel:     parseLevel(envStr("LOG_LEVEL", "info")),

		WorldSeed:   envInt64("WORLD_SEED", 42),
		WorldWidth:  envInt("WORLD_WIDTH", 100),
		WorldHeight: envInt("WORLD_HEIGHT", 100),
		AgentCount:  envInt("AGENT_COUNT", 8),

		TickInterval:    time.Duration(envInt("TICK_INTERVAL_MS", 5000)) * time.Millisecond,
		WorkerCount:     envInt("WORKER_COUNT", 8),
		DecisionTimeout: time.Duration(envInt("DECISION_TIMEOUT_MS", 20000)) * time.Millisecond,

		VisibilityRadius: envInt("VISIBILITY_RADIUS", 10),
		VisibilityMetric: envStr("VISIBILITY_METRIC", "chebyshev"),
		WitnessRadius:    envInt("WITNESS_RADIUS", 5),

		HungerDecay: envFloat("HUNGER_DECAY", 0.5),
		EnergyDecay: envFloat("ENERGY_DECAY", 0.3),
		HealthBleed: envFloat("HEALTH_BLEED", 5),

		RecentEventsLimit: envInt("RECENT_EVENTS_LIMIT", 100),

		AnthropicAPIKey:         envStr("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:            envStr("OPENAI_API_KEY", ""),
		LLMCacheTTL:             time.Duration(envInt("LLM_CACHE_TTL_SECONDS", 7*24*3600)) * time.Second,
		CapabilityNormalization: envBool("CAPABILITY_NORMALIZATION", false),
		SyntheticVocabulary:     envBool("SYNTHETIC_VOCABULARY", false),
		TestMode:                envBool("TEST_MODE", false),

		GenesisCacheEnabled: envBool("GENESIS_CACHE_ENABLED", true),
		GenesisCacheTTL:     time.Duration(envInt("GENESIS_CACHE_TTL_SECONDS", 24*3600)) * time.Second,
		GenesisCachePrefix:  envStr("GENESIS_CACHE_PREFIX", "genesis-cache"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("invalid float env var, using default", "key", key, "value", v, "default", fallback)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", fallback)
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
