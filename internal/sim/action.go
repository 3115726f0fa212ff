package sim

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ActionType enumerates everything an agent can attempt in one tick.
type ActionType string

const (
	ActionMove         ActionType = "move"
	ActionBuy          ActionType = "buy"
	ActionConsume      ActionType = "consume"
	ActionSleep        ActionType = "sleep"
	ActionWork         ActionType = "work"
	ActionGather       ActionType = "gather"
	ActionTrade        ActionType = "trade"
	ActionHarm         ActionType = "harm"
	ActionSteal        ActionType = "steal"
	ActionDeceive      ActionType = "deceive"
	ActionShareInfo    ActionType = "share_info"
	ActionClaim        ActionType = "claim"
	ActionNameLocation ActionType = "name_location"
)

// ActionTypes is the closed set of valid actions.
var ActionTypes = map[ActionType]bool{
	ActionMove: true, ActionBuy: true, ActionConsume: true, ActionSleep: true,
	ActionWork: true, ActionGather: true, ActionTrade: true, ActionHarm: true,
	ActionSteal: true, ActionDeceive: true, ActionShareInfo: true,
	ActionClaim: true, ActionNameLocation: true,
}

// Decision is what a policy returns for one observation.
type Decision struct {
	Action    ActionType     `json:"action"`
	Params    map[string]any `json:"params"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// Intent is a decision bound to the agent that will execute it.
type Intent struct {
	AgentID  string
	Decision Decision
	// Fallback marks decisions produced by the deterministic fallback
	// policy (adapter error, parse failure, or deadline).
	Fallback bool
}

// AgentPatch is a partial agent update keyed by store column. Applied
// last-writer-wins per field by Store.UpdateAgent.
type AgentPatch map[string]any

// InventoryDelta adjusts one item stack by Qty (negative to remove).
// AgentID defaults to the acting agent when empty.
type InventoryDelta struct {
	AgentID  string
	ItemType string
	Qty      int
}

// Event is a proposed (not yet committed) world event. The tick engine
// assigns version and tick at append time.
type Event struct {
	Type    string
	AgentID *string
	Payload map[string]any
}

// ActionResult is what a handler proposes. Nothing has mutated yet; the tick
// engine applies Changes, Others, Inventory, Knowledge, and Events atomically
// per acting agent.
type ActionResult struct {
	Success   bool
	Error     string
	Changes   AgentPatch
	Others    map[string]AgentPatch
	Inventory []InventoryDelta
	Knowledge []Knowledge
	Events    []Event
	Memories  []Memory
	// ClaimShelter names a shelter whose ownership the engine should take
	// for the actor through the store's atomic claim.
	ClaimShelter string
}

// Fail builds a failed result with a short reason.
func Fail(format string, args ...any) ActionResult {
	return ActionResult{Error: fmt.Sprintf(format, args...)}
}

// Harm intensities.
const (
	IntensityLight    = "light"
	IntensityModerate = "moderate"
	IntensitySevere   = "severe"
)

// Deceive claim types.
var claimTypes = map[string]bool{
	"resource_location": true,
	"agent_reputation":  true,
	"danger_warning":    true,
	"trade_offer":       true,
	"other":             true,
}

// ShareInfo info types.
var infoTypes = map[string]bool{
	"location":       true,
	"reputation":     true,
	"warning":        true,
	"recommendation": true,
}

// ValidateDecision checks the action type and its params against the schema.
// The same validation runs on the cache-hit path, the cache-miss path, and
// external gateway submissions.
func ValidateDecision(d Decision) error {
	if !ActionTypes[d.Action] {
		return fmt.Errorf("unknown action %q", d.Action)
	}
	p := params(d.Params)
	switch d.Action {
	case ActionMove:
		if _, ok := p.number("toX"); !ok {
			return fmt.Errorf("move: toX must be a number")
		}
		if _, ok := p.number("toY"); !ok {
			return fmt.Errorf("move: toY must be a number")
		}
	case ActionSleep:
		if d, ok := p.number("duration"); !ok || d < 1 || d > 10 {
			return fmt.Errorf("sleep: duration must be in [1,10]")
		}
	case ActionGather:
		if v, present := d.Params["resourceType"]; present {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("gather: resourceType must be a string")
			}
		}
		if _, present := d.Params["quantity"]; present {
			if q, ok := p.number("quantity"); !ok || q < 1 || q > 5 {
				return fmt.Errorf("gather: quantity must be in [1,5]")
			}
		}
	case ActionWork:
		if _, present := d.Params["duration"]; present {
			if dur, ok := p.number("duration"); !ok || dur < 1 || dur > 5 {
				return fmt.Errorf("work: duration must be in [1,5]")
			}
		}
	case ActionBuy:
		if p.str("itemType") == "" {
			return fmt.Errorf("buy: itemType is required")
		}
		if _, present := d.Params["quantity"]; present {
			if q, ok := p.number("quantity"); !ok || q < 1 {
				return fmt.Errorf("buy: quantity must be positive")
			}
		}
	case ActionConsume:
		if p.str("itemType") == "" {
			return fmt.Errorf("consume: itemType is required")
		}
	case ActionTrade:
		if p.str("targetAgentId") == "" {
			return fmt.Errorf("trade: targetAgentId is required")
		}
		if p.str("offerItemType") == "" {
			return fmt.Errorf("trade: offerItemType is required")
		}
	case ActionHarm:
		if p.str("targetAgentId") == "" {
			return fmt.Errorf("harm: targetAgentId is required")
		}
		switch p.str("intensity") {
		case IntensityLight, IntensityModerate, IntensitySevere:
		default:
			return fmt.Errorf("harm: intensity must be light, moderate, or severe")
		}
	case ActionSteal:
		if p.str("targetAgentId") == "" {
			return fmt.Errorf("steal: targetAgentId is required")
		}
	case ActionDeceive:
		if p.str("targetAgentId") == "" {
			return fmt.Errorf("deceive: targetAgentId is required")
		}
		claim := p.str("claim")
		if n := utf8.RuneCountInString(claim); n < 5 || n > 500 {
			return fmt.Errorf("deceive: claim must be 5-500 characters")
		}
		if !claimTypes[p.str("claimType")] {
			return fmt.Errorf("deceive: invalid claimType")
		}
	case ActionShareInfo:
		if p.str("targetAgentId") == "" {
			return fmt.Errorf("share_info: targetAgentId is required")
		}
		if p.str("subjectAgentId") == "" {
			return fmt.Errorf("share_info: subjectAgentId is required")
		}
		if !infoTypes[p.str("infoType")] {
			return fmt.Errorf("share_info: invalid infoType")
		}
		if _, present := d.Params["sentiment"]; present {
			if s, ok := p.number("sentiment"); !ok || s < -100 || s > 100 {
				return fmt.Errorf("share_info: sentiment must be in [-100,100]")
			}
		}
	case ActionClaim:
		if p.str("shelterId") == "" {
			return fmt.Errorf("claim: shelterId is required")
		}
	case ActionNameLocation:
		name := strings.TrimSpace(p.str("name"))
		if n := utf8.RuneCountInString(name); n < 1 || n > 50 {
			return fmt.Errorf("name_location: name must be 1-50 characters")
		}
	}
	return nil
}

// params wraps the untyped JSON param map with typed accessors.
type params map[string]any

func (p params) number(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (p params) str(key string) string {
	s, _ := p[key].(string)
	return s
}

// ParamNumber reads a numeric param, returning fallback when absent.
func ParamNumber(m map[string]any, key string, fallback float64) float64 {
	if v, ok := params(m).number(key); ok {
		return v
	}
	return fallback
}

// ParamString reads a string param.
func ParamString(m map[string]any, key string) string {
	return params(m).str(key)
}
