// Package sim defines the core data model shared by every engine component:
// agents, resource spawns, shelters, world state, events, and the
// decision/action vocabulary.
package sim

import "time"

// AgentState is the lifecycle state of an agent.
type AgentState string

const (
	StateIdle     AgentState = "idle"
	StateWalking  AgentState = "walking"
	StateWorking  AgentState = "working"
	StateSleeping AgentState = "sleeping"
	StateDead     AgentState = "dead"
)

// Agent is a single inhabitant of the grid world. Mutated only by the tick
// engine (application and environment phases); everything else reads.
type Agent struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	PolicyType  string     `db:"policy_type" json:"policyType"`
	X           int        `db:"x" json:"x"`
	Y           int        `db:"y" json:"y"`
	Hunger      float64    `db:"hunger" json:"hunger"`
	Energy      float64    `db:"energy" json:"energy"`
	Health      float64    `db:"health" json:"health"`
	Balance     float64    `db:"balance" json:"balance"`
	State       AgentState `db:"state" json:"state"`
	Color       string     `db:"color" json:"color"`
	Personality string     `db:"personality" json:"personality,omitempty"`
	SpawnIndex  int        `db:"spawn_index" json:"spawnIndex"`
	SleepUntil  int64      `db:"sleep_until" json:"sleepUntil,omitempty"`
	DiedAt      *int64     `db:"died_at" json:"diedAt,omitempty"`
}

// Alive reports whether the agent can still act.
func (a *Agent) Alive() bool {
	return a.State != StateDead
}

// ResourceKind enumerates what a spawn yields.
type ResourceKind string

const (
	ResourceFood     ResourceKind = "food"
	ResourceEnergy   ResourceKind = "energy"
	ResourceMaterial ResourceKind = "material"
)

// ItemType returns the inventory item name for gathered units of this kind.
// Energy resources are carried as batteries.
func (k ResourceKind) ItemType() string {
	if k == ResourceEnergy {
		return "battery"
	}
	return string(k)
}

// ResourceSpawn is a harvestable resource node. CurrentAmount is mutated only
// through Store.HarvestResource and the environment regeneration pass.
type ResourceSpawn struct {
	ID            string       `db:"id" json:"id"`
	X             int          `db:"x" json:"x"`
	Y             int          `db:"y" json:"y"`
	Kind          ResourceKind `db:"kind" json:"kind"`
	CurrentAmount int          `db:"current_amount" json:"currentAmount"`
	MaxAmount     int          `db:"max_amount" json:"maxAmount"`
	RegenRate     int          `db:"regen_rate" json:"regenRate"`
	Biome         string       `db:"biome" json:"biome"`
}

// Shelter is a fixed structure agents can sleep and work at.
type Shelter struct {
	ID         string  `db:"id" json:"id"`
	X          int     `db:"x" json:"x"`
	Y          int     `db:"y" json:"y"`
	CanSleep   bool    `db:"can_sleep" json:"canSleep"`
	OwnerAgent *string `db:"owner_agent" json:"ownerAgent,omitempty"`
}

// InventoryEntry is one (agent, item) stack. Rows are deleted at quantity 0.
type InventoryEntry struct {
	AgentID  string `db:"agent_id" json:"agentId"`
	ItemType string `db:"item_type" json:"itemType"`
	Quantity int    `db:"quantity" json:"quantity"`
}

// WorldState is the singleton world record.
type WorldState struct {
	CurrentTick        int64 `db:"current_tick" json:"currentTick"`
	IsPaused           bool  `db:"is_paused" json:"isPaused"`
	GlobalEventVersion int64 `db:"global_event_version" json:"globalEventVersion"`
}

// WorldEvent is one committed, immutable log record. Version is globally
// monotonic and gap-free.
type WorldEvent struct {
	Version   int64          `json:"version"`
	Tick      int64          `json:"tick"`
	Type      string         `json:"type"`
	AgentID   *string        `json:"agentId,omitempty"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ExternalAgent binds an API key to a simulation agent controlled from
// outside the process.
type ExternalAgent struct {
	ID               string     `db:"id" json:"id"`
	AgentID          string     `db:"agent_id" json:"agentId"`
	APIKeyHash       string     `db:"api_key_hash" json:"-"`
	Endpoint         string     `db:"endpoint" json:"endpoint,omitempty"`
	OwnerEmail       string     `db:"owner_email" json:"ownerEmail,omitempty"`
	RateLimitPerTick int        `db:"rate_limit_per_tick" json:"rateLimitPerTick"`
	LastSeenAt       *time.Time `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	IsActive         bool       `db:"is_active" json:"isActive"`
}

// Memory is a durable note an agent keeps about something it did or saw.
type Memory struct {
	AgentID string `db:"agent_id" json:"agentId"`
	Tick    int64  `db:"tick" json:"tick"`
	Kind    string `db:"kind" json:"kind"`
	Content string `db:"content" json:"content"`
	X       int    `db:"x" json:"x"`
	Y       int    `db:"y" json:"y"`
}

// Knowledge is what one agent believes about another, tagged with how the
// belief arrived. Direct observation has ReferralDepth 0; hearsay increments
// it per hop.
type Knowledge struct {
	AgentID       string  `db:"agent_id" json:"agentId"`
	SubjectID     string  `db:"subject_id" json:"subjectId"`
	InfoType      string  `db:"info_type" json:"infoType"`
	Sentiment     float64 `db:"sentiment" json:"sentiment"`
	DiscoveryType string  `db:"discovery_type" json:"discoveryType"`
	ReferredBy    *string `db:"referred_by" json:"referredBy,omitempty"`
	ReferralDepth int     `db:"referral_depth" json:"referralDepth"`
}

// Discovery type tags for Knowledge rows.
const (
	DiscoveryDirect   = "direct"
	DiscoveryReferral = "referral"
)

// Size is the world grid dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ManhattanDist returns |x1-x2| + |y1-y2|.
func ManhattanDist(x1, y1, x2, y2 int) int {
	return abs(x1-x2) + abs(y1-y2)
}

// ChebyshevDist returns max(|x1-x2|, |y1-y2|).
func ChebyshevDist(x1, y1, x2, y2 int) int {
	dx, dy := abs(x1-x2), abs(y1-y2)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ClampVital bounds a vital sign to [0, 100].
func ClampVital(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
