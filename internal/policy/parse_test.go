package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworld/internal/sim"
)

func TestParseDecisionBareJSON(t *testing.T) {
	d, err := ParseDecision(`{"action": "move", "params": {"toX": 3, "toY": 4}, "reasoning": "food"}`)
	require.NoError(t, err)
	assert.Equal(t, sim.ActionMove, d.Action)
	assert.Equal(t, 3.0, d.Params["toX"])
	assert.Equal(t, "food", d.Reasoning)
}

func TestParseDecisionMarkdownFence(t *testing.T) {
	text := "Here is my choice:\n```json\n{\"action\": \"sleep\", \"params\": {\"duration\": 3}}\n```\nGood luck!"
	d, err := ParseDecision(text)
	require.NoError(t, err)
	assert.Equal(t, sim.ActionSleep, d.Action)
}

func TestParseDecisionProseAround(t *testing.T) {
	text := `I think the best move is to gather. {"action": "gather", "params": {"resourceType": "food", "quantity": 2}} That should help.`
	d, err := ParseDecision(text)
	require.NoError(t, err)
	assert.Equal(t, sim.ActionGather, d.Action)
	assert.Equal(t, 2.0, d.Params["quantity"])
}

func TestParseDecisionBracesInsideStrings(t *testing.T) {
	text := `{"action": "name_location", "params": {"name": "curly {place}"}, "reasoning": "a \"quoted\" name"}`
	d, err := ParseDecision(text)
	require.NoError(t, err)
	assert.Equal(t, "curly {place}", d.Params["name"])
}

func TestParseDecisionNestedParams(t *testing.T) {
	text := `{"action": "move", "params": {"toX": 1, "toY": 2}}{"action": "sleep"}`
	d, err := ParseDecision(text)
	require.NoError(t, err)
	assert.Equal(t, sim.ActionMove, d.Action)
}

func TestParseDecisionNoJSON(t *testing.T) {
	_, err := ParseDecision("I refuse to answer in JSON.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestParseDecisionUnterminated(t *testing.T) {
	_, err := ParseDecision(`{"action": "move", "params": {"toX": 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")
}

func TestParseDecisionSchemaRejected(t *testing.T) {
	_, err := ParseDecision(`{"action": "levitate", "params": {}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decision")
}

func TestParseDecisionMissingParams(t *testing.T) {
	// gather has no required params; a missing params object defaults empty.
	d, err := ParseDecision(`{"action": "gather"}`)
	require.NoError(t, err)
	require.NotNil(t, d.Params)
	assert.Empty(t, d.Params)
}
