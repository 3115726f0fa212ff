package sim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDecision(t *testing.T) {
	tests := []struct {
		name    string
		action  ActionType
		params  map[string]any
		wantErr string
	}{
		{"unknown action", "fly", nil, "unknown action"},
		{"move valid", ActionMove, map[string]any{"toX": 3.0, "toY": 4.0}, ""},
		{"move missing toY", ActionMove, map[string]any{"toX": 3.0}, "toY"},
		{"move string coord", ActionMove, map[string]any{"toX": "3", "toY": 4.0}, "toX"},
		{"sleep min", ActionSleep, map[string]any{"duration": 1.0}, ""},
		{"sleep max", ActionSleep, map[string]any{"duration": 10.0}, ""},
		{"sleep zero", ActionSleep, map[string]any{"duration": 0.0}, "duration"},
		{"sleep eleven", ActionSleep, map[string]any{"duration": 11.0}, "duration"},
		{"sleep missing", ActionSleep, map[string]any{}, "duration"},
		{"gather default", ActionGather, map[string]any{}, ""},
		{"gather qty one", ActionGather, map[string]any{"quantity": 1.0}, ""},
		{"gather qty five", ActionGather, map[string]any{"quantity": 5.0}, ""},
		{"gather qty zero", ActionGather, map[string]any{"quantity": 0.0}, "quantity"},
		{"gather qty six", ActionGather, map[string]any{"quantity": 6.0}, "quantity"},
		{"gather bad type", ActionGather, map[string]any{"resourceType": 7.0}, "resourceType"},
		{"work default", ActionWork, map[string]any{}, ""},
		{"work five", ActionWork, map[string]any{"duration": 5.0}, ""},
		{"work zero", ActionWork, map[string]any{"duration": 0.0}, "duration"},
		{"work six", ActionWork, map[string]any{"duration": 6.0}, "duration"},
		{"buy valid", ActionBuy, map[string]any{"itemType": "food"}, ""},
		{"buy no item", ActionBuy, map[string]any{}, "itemType"},
		{"buy zero qty", ActionBuy, map[string]any{"itemType": "food", "quantity": 0.0}, "quantity"},
		{"consume valid", ActionConsume, map[string]any{"itemType": "food"}, ""},
		{"consume no item", ActionConsume, map[string]any{}, "itemType"},
		{"trade valid", ActionTrade, map[string]any{"targetAgentId": "a", "offerItemType": "food"}, ""},
		{"trade no offer", ActionTrade, map[string]any{"targetAgentId": "a"}, "offerItemType"},
		{"harm valid", ActionHarm, map[string]any{"targetAgentId": "a", "intensity": "light"}, ""},
		{"harm bad intensity", ActionHarm, map[string]any{"targetAgentId": "a", "intensity": "brutal"}, "intensity"},
		{"harm no target", ActionHarm, map[string]any{"intensity": "light"}, "targetAgentId"},
		{"steal valid", ActionSteal, map[string]any{"targetAgentId": "a"}, ""},
		{"steal no target", ActionSteal, map[string]any{}, "targetAgentId"},
		{
			"deceive valid", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": "food north", "claimType": "resource_location"}, "",
		},
		{
			"deceive claim four chars", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": "abcd", "claimType": "other"}, "claim",
		},
		{
			"deceive claim five chars", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": "abcde", "claimType": "other"}, "",
		},
		{
			"deceive claim five hundred", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": strings.Repeat("x", 500), "claimType": "other"}, "",
		},
		{
			"deceive claim too long", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": strings.Repeat("x", 501), "claimType": "other"}, "claim",
		},
		{
			// Five runes, ten bytes: the bound counts characters.
			"deceive claim five multibyte", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": "ééééé", "claimType": "other"}, "",
		},
		{
			"deceive claim five hundred multibyte", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": strings.Repeat("é", 500), "claimType": "other"}, "",
		},
		{
			"deceive claim four multibyte", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": "éééé", "claimType": "other"}, "claim",
		},
		{
			"deceive bad claim type", ActionDeceive,
			map[string]any{"targetAgentId": "a", "claim": "abcde", "claimType": "gossip"}, "claimType",
		},
		{
			"share valid", ActionShareInfo,
			map[string]any{"targetAgentId": "a", "subjectAgentId": "b", "infoType": "reputation"}, "",
		},
		{
			"share sentiment bounds", ActionShareInfo,
			map[string]any{"targetAgentId": "a", "subjectAgentId": "b", "infoType": "reputation", "sentiment": -100.0}, "",
		},
		{
			"share sentiment too low", ActionShareInfo,
			map[string]any{"targetAgentId": "a", "subjectAgentId": "b", "infoType": "reputation", "sentiment": -101.0}, "sentiment",
		},
		{
			"share bad info type", ActionShareInfo,
			map[string]any{"targetAgentId": "a", "subjectAgentId": "b", "infoType": "rumor"}, "infoType",
		},
		{
			"share no subject", ActionShareInfo,
			map[string]any{"targetAgentId": "a", "infoType": "reputation"}, "subjectAgentId",
		},
		{"claim valid", ActionClaim, map[string]any{"shelterId": "s1"}, ""},
		{"claim no shelter", ActionClaim, map[string]any{}, "shelterId"},
		{"name valid", ActionNameLocation, map[string]any{"name": "The Crossing"}, ""},
		{"name blank", ActionNameLocation, map[string]any{"name": "   "}, "name"},
		{"name too long", ActionNameLocation, map[string]any{"name": strings.Repeat("a", 51)}, "name"},
		{"name fifty multibyte", ActionNameLocation, map[string]any{"name": strings.Repeat("é", 50)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDecision(Decision{Action: tt.action, Params: tt.params})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDecisionIntParams(t *testing.T) {
	// Params built in Go (fallback, tests) carry ints, not float64.
	err := ValidateDecision(Decision{
		Action: ActionMove,
		Params: map[string]any{"toX": 3, "toY": 4},
	})
	assert.NoError(t, err)

	err = ValidateDecision(Decision{
		Action: ActionSleep,
		Params: map[string]any{"duration": 3},
	})
	assert.NoError(t, err)
}

func TestParamHelpers(t *testing.T) {
	m := map[string]any{"n": 4.0, "s": "hi"}
	assert.Equal(t, 4.0, ParamNumber(m, "n", 9))
	assert.Equal(t, 9.0, ParamNumber(m, "missing", 9))
	assert.Equal(t, 9.0, ParamNumber(m, "s", 9))
	assert.Equal(t, "hi", ParamString(m, "s"))
	assert.Equal(t, "", ParamString(m, "n"))
}

func TestClampVital(t *testing.T) {
	assert.Equal(t, 0.0, ClampVital(-3))
	assert.Equal(t, 55.5, ClampVital(55.5))
	assert.Equal(t, 100.0, ClampVital(140))
}

func TestDistances(t *testing.T) {
	assert.Equal(t, 7, ManhattanDist(0, 0, 3, 4))
	assert.Equal(t, 4, ChebyshevDist(0, 0, 3, 4))
	assert.Equal(t, 0, ManhattanDist(2, 2, 2, 2))
	assert.Equal(t, 3, ChebyshevDist(5, 5, 2, 4))
}

func TestResourceKindItemType(t *testing.T) {
	assert.Equal(t, "food", ResourceFood.ItemType())
	assert.Equal(t, "battery", ResourceEnergy.ItemType())
	assert.Equal(t, "material", ResourceMaterial.ItemType())
}
