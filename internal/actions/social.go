package actions

import (
	"strings"

	"github.com/talgya/gridworld/internal/sim"
)

// handleShareInfo passes knowledge about a third agent to a nearby listener.
// The listener's record is tagged as a referral one hop deeper than the
// sharer's own knowledge of the subject; firsthand knowledge is depth 0.
func handleShareInfo(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	targetID := sim.ParamString(d.Params, "targetAgentId")
	subjectID := sim.ParamString(d.Params, "subjectAgentId")
	if targetID == actor.ID || subjectID == actor.ID || subjectID == targetID {
		return sim.Fail("sharer, subject, and target must be distinct")
	}
	target := v.Agent(targetID)
	if target == nil || !target.Alive() {
		return sim.Fail("Target agent not found or dead")
	}
	if sim.ManhattanDist(actor.X, actor.Y, target.X, target.Y) > 3 {
		return sim.Fail("Target too far away")
	}

	infoType := sim.ParamString(d.Params, "infoType")
	sentiment := sim.ParamNumber(d.Params, "sentiment", 0)

	depth := 1
	if prior, ok := v.Knowledge[subjectID]; ok {
		depth = prior.ReferralDepth + 1
	}

	return sim.ActionResult{
		Success: true,
		Knowledge: []sim.Knowledge{{
			AgentID:       targetID,
			SubjectID:     subjectID,
			InfoType:      infoType,
			Sentiment:     sentiment,
			DiscoveryType: sim.DiscoveryReferral,
			ReferredBy:    &actor.ID,
			ReferralDepth: depth,
		}},
		Events: []sim.Event{{
			Type:    sim.EventAgentSharedInfo,
			AgentID: &actor.ID,
			Payload: map[string]any{
				"targetAgentId":  targetID,
				"subjectAgentId": subjectID,
				"infoType":       infoType,
				"sentiment":      sentiment,
				"referralDepth":  depth,
			},
		}},
	}
}

// handleClaim takes ownership of an unowned shelter on the actor's cell. The
// engine performs the actual claim through the store's conditional update,
// so two claimants in the same tick resolve to one owner.
func handleClaim(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	shelterID := sim.ParamString(d.Params, "shelterId")

	var shelter *sim.Shelter
	for _, sh := range v.Shelters {
		if sh.ID == shelterID {
			shelter = sh
			break
		}
	}
	if shelter == nil {
		return sim.Fail("Shelter not found")
	}
	if shelter.X != actor.X || shelter.Y != actor.Y {
		return sim.Fail("Not at shelter")
	}
	if shelter.OwnerAgent != nil {
		return sim.Fail("Shelter already owned")
	}

	return sim.ActionResult{
		Success:      true,
		ClaimShelter: shelterID,
		Events: []sim.Event{{
			Type:    sim.EventShelterClaimed,
			AgentID: &actor.ID,
			Payload: map[string]any{"shelterId": shelterID, "x": shelter.X, "y": shelter.Y},
		}},
		Memories: []sim.Memory{{
			AgentID: actor.ID, Tick: v.Tick, Kind: "action",
			Content: "claimed a shelter",
			X:       shelter.X, Y: shelter.Y,
		}},
	}
}

// handleNameLocation records a name for the actor's current cell. Names live
// in the event log and the namer's memory; the grid itself stays anonymous.
func handleNameLocation(v *View, actor *sim.Agent, d sim.Decision) sim.ActionResult {
	name := strings.TrimSpace(sim.ParamString(d.Params, "name"))

	return sim.ActionResult{
		Success: true,
		Events: []sim.Event{{
			Type:    sim.EventLocationNamed,
			AgentID: &actor.ID,
			Payload: map[string]any{"name": name, "x": actor.X, "y": actor.Y},
		}},
		Memories: []sim.Memory{{
			AgentID: actor.ID, Tick: v.Tick, Kind: "location",
			Content: "named this place " + name,
			X:       actor.X, Y: actor.Y,
		}},
	}
}
