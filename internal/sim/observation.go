package sim

// Observation is everything a policy sees before deciding. Built by the
// observation builder from a store snapshot; identical inputs produce
// identical observations.
type Observation struct {
	Self                 SelfView       `json:"self"`
	Inventory            map[string]int `json:"inventory"`
	NearbyAgents         []AgentView    `json:"nearbyAgents"`
	NearbyResourceSpawns []SpawnView    `json:"nearbyResourceSpawns"`
	NearbyShelters       []ShelterView  `json:"nearbyShelters"`
	RecentEvents         []EventView    `json:"recentEvents"`
	Tick                 int64          `json:"tick"`
	WorldSize            Size           `json:"worldSize"`
}

// SelfView is the observing agent's own state.
type SelfView struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	X       int        `json:"x"`
	Y       int        `json:"y"`
	Hunger  float64    `json:"hunger"`
	Energy  float64    `json:"energy"`
	Health  float64    `json:"health"`
	Balance float64    `json:"balance"`
	State   AgentState `json:"state"`
}

// AgentView is what one agent sees of another: position and outward state
// only, never vitals or inventory.
type AgentView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	X     int        `json:"x"`
	Y     int        `json:"y"`
	State AgentState `json:"state"`
}

// SpawnView is a visible resource spawn.
type SpawnView struct {
	ID            string       `json:"id"`
	X             int          `json:"x"`
	Y             int          `json:"y"`
	Kind          ResourceKind `json:"kind"`
	CurrentAmount int          `json:"currentAmount"`
}

// ShelterView is a visible shelter.
type ShelterView struct {
	ID         string  `json:"id"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	CanSleep   bool    `json:"canSleep"`
	OwnerAgent *string `json:"ownerAgent,omitempty"`
}

// EventView is a recent event trimmed for observation payloads.
type EventView struct {
	Tick    int64          `json:"tick"`
	Type    string         `json:"type"`
	AgentID *string        `json:"agentId,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}
