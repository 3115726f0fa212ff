package sim

// Canonical event type names. Handlers and the engine use the past/progressive
// forms everywhere; nothing emits the bare-verb variants.
const (
	EventAgentMoved      = "agent_moved"
	EventAgentGathered   = "agent_gathered"
	EventAgentConsumed   = "agent_consumed"
	EventAgentSleeping   = "agent_sleeping"
	EventAgentWoke       = "agent_woke"
	EventAgentWorked     = "agent_worked"
	EventAgentBought     = "agent_bought"
	EventAgentTraded     = "agent_traded"
	EventAgentHarmed     = "agent_harmed"
	EventAgentStole      = "agent_stole"
	EventAgentDeceived   = "agent_deceived"
	EventAgentSharedInfo = "agent_shared_info"
	EventShelterClaimed  = "shelter_claimed"
	EventLocationNamed   = "location_named"
	EventBalanceChanged  = "balance_changed"
	EventActionFailed    = "action_failed"
	EventNeedsUpdated    = "needs_updated"
	EventAgentDied       = "agent_died"
	EventAgentSpawned    = "agent_spawned"
	EventTickEnd         = "tick_end"
	EventWitnessed       = "witnessed_conflict"
	EventWorldReset      = "world_reset"
	EventVariantStarted  = "variant_started"
	EventVariantEnded    = "variant_ended"
)

// Death causes recorded on agent_died events.
const (
	DeathStarvation = "starvation"
	DeathExhaustion = "exhaustion"
	DeathInjury     = "injury"
)
