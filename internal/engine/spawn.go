package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/sim"
	"github.com/talgya/gridworld/internal/store"
)

// Biomes derived from layered noise. Spawn kinds and densities follow the
// biome of the cell.
const (
	biomePlains = "plains"
	biomeForest = "forest"
	biomeDesert = "desert"
	biomeHills  = "hills"
)

var agentNames = []string{
	"Ada", "Basil", "Clio", "Dorian", "Edda", "Felix", "Greta", "Hugo",
	"Iris", "Jasper", "Kira", "Lumen", "Mira", "Nico", "Opal", "Piet",
	"Quinn", "Rosa", "Sol", "Tessa", "Uli", "Vera", "Wren", "Yuri",
}

var agentColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
}

var personalities = []string{
	"cautious planner who hoards supplies",
	"restless wanderer drawn to unexplored corners",
	"shrewd trader always looking for a margin",
	"generous neighbor who shares freely",
	"suspicious loner who trusts direct observation only",
	"industrious builder who works every chance",
	"opportunist with flexible ethics",
	"storyteller who names places and spreads news",
}

// SpawnWorld generates resource spawns, shelters, and the initial agent
// population deterministically from the configured seed. Safe to call only
// on an empty world.
func SpawnWorld(st *store.Store, rng *entropy.Source, cfg *config.Config, policyTypes []string) error {
	seed := rng.Seed()
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)

	w, h := cfg.WorldWidth, cfg.WorldHeight

	// Resource spawns: sample each cell's biome, place spawns where the
	// noise crosses biome-specific density thresholds.
	spawnCount := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			elev := octaveNoise(elevNoise, float64(x), float64(y), 3, 0.07, 0.5)
			rain := octaveNoise(rainNoise, float64(x), float64(y), 3, 0.05, 0.5)
			biome := deriveBiome(elev, rain)

			kind, ok := spawnKindFor(biome, rng)
			if !ok {
				continue
			}
			sp := &sim.ResourceSpawn{
				ID:        uuid.NewString(),
				X:         x,
				Y:         y,
				Kind:      kind,
				MaxAmount: 10 + rng.IntN(20),
				RegenRate: 1 + rng.IntN(2),
				Biome:     biome,
			}
			sp.CurrentAmount = sp.MaxAmount
			if err := st.InsertResourceSpawn(sp); err != nil {
				return fmt.Errorf("insert spawn: %w", err)
			}
			spawnCount++
		}
	}

	// Shelters: a sparse deterministic grid, nudged by the RNG.
	shelterCount := 0
	step := int(math.Max(8, float64(w)/6))
	for y := step / 2; y < h; y += step {
		for x := step / 2; x < w; x += step {
			sh := &sim.Shelter{
				ID:       uuid.NewString(),
				X:        clampInt(x+rng.IntN(5)-2, 0, w-1),
				Y:        clampInt(y+rng.IntN(5)-2, 0, h-1),
				CanSleep: true,
			}
			if err := st.InsertShelter(sh); err != nil {
				return fmt.Errorf("insert shelter: %w", err)
			}
			shelterCount++
		}
	}

	// Agents: round-robin over the available policy types, scattered near
	// the world center.
	if len(policyTypes) == 0 {
		policyTypes = []string{"fallback"}
	}
	for i := 0; i < cfg.AgentCount; i++ {
		a := &sim.Agent{
			ID:          uuid.NewString(),
			Name:        agentNames[i%len(agentNames)],
			PolicyType:  policyTypes[i%len(policyTypes)],
			X:           clampInt(w/2+rng.IntN(21)-10, 0, w-1),
			Y:           clampInt(h/2+rng.IntN(21)-10, 0, h-1),
			Hunger:      100,
			Energy:      100,
			Health:      100,
			Balance:     50,
			State:       sim.StateIdle,
			Color:       agentColors[i%len(agentColors)],
			Personality: personalities[rng.IntN(len(personalities))],
			SpawnIndex:  i,
		}
		if err := st.InsertAgent(a); err != nil {
			return fmt.Errorf("insert agent: %w", err)
		}
	}

	slog.Info("world spawned", "seed", seed,
		"spawns", spawnCount, "shelters", shelterCount, "agents", cfg.AgentCount)
	return nil
}

func deriveBiome(elev, rain float64) string {
	switch {
	case elev > 0.7:
		return biomeHills
	case rain < 0.3:
		return biomeDesert
	case rain > 0.55 && elev > 0.35:
		return biomeForest
	default:
		return biomePlains
	}
}

// spawnKindFor rolls whether a cell of a biome hosts a spawn and of what
// kind. Densities keep roughly one spawn per 25 cells.
func spawnKindFor(biome string, rng *entropy.Source) (sim.ResourceKind, bool) {
	roll := rng.Float()
	switch biome {
	case biomeForest:
		if roll < 0.08 {
			return sim.ResourceFood, true
		}
		if roll < 0.11 {
			return sim.ResourceMaterial, true
		}
	case biomePlains:
		if roll < 0.05 {
			return sim.ResourceFood, true
		}
		if roll < 0.07 {
			return sim.ResourceEnergy, true
		}
	case biomeHills:
		if roll < 0.06 {
			return sim.ResourceMaterial, true
		}
		if roll < 0.08 {
			return sim.ResourceEnergy, true
		}
	case biomeDesert:
		if roll < 0.02 {
			return sim.ResourceEnergy, true
		}
	}
	return "", false
}

// octaveNoise layers noise octaves for natural-looking variation.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxValue := 0.0, 1.0, 0.0
	freq := frequency
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*freq, y*freq) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		freq *= 2
	}
	return total / maxValue
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
