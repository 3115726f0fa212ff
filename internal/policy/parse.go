package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/gridworld/internal/sim"
)

// ParseDecision extracts and validates a decision from raw model output.
// Models wrap JSON in markdown fences or prose often enough that the parser
// scans for the outermost object instead of trusting the whole string.
func ParseDecision(text string) (sim.Decision, error) {
	obj, err := extractJSON(text)
	if err != nil {
		return sim.Decision{}, err
	}

	var d sim.Decision
	if err := json.Unmarshal([]byte(obj), &d); err != nil {
		return sim.Decision{}, fmt.Errorf("unmarshal decision: %w", err)
	}
	if d.Params == nil {
		d.Params = map[string]any{}
	}
	if err := sim.ValidateDecision(d); err != nil {
		return sim.Decision{}, fmt.Errorf("invalid decision: %w", err)
	}
	return d, nil
}

// extractJSON returns the first balanced top-level JSON object in text.
// Brace counting skips braces inside string literals.
func extractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object in response")
}
