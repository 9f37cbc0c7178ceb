package reasoner

import (
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/toolmind/internal/oracle"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// decision is AG's own parsed, validated view of what OR returned for one
// iteration: the chosen next state, the reasoning that produced it, and
// (depending on that state) an action payload or a final answer.
type decision struct {
	State       State
	Reasoning   string
	Action      map[string]any
	FinalAnswer string
	Confidence  models.Confidence
}

// buildDecisionSchema produces the JSON schema OR must satisfy for a
// decision made from the current state, restricting the state enum to the
// allowed-next-states table so the oracle's choice is structurally
// constrained even before AG re-checks it.
func buildDecisionSchema(allowed []State) []byte {
	enum := make([]string, len(allowed))
	for i, s := range allowed {
		enum[i] = string(s)
	}
	enumJSON, _ := json.Marshal(enum)

	schema := fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"state": {"type": "string", "enum": %s},
			"reasoning": {"type": "string"},
			"action": {"type": "object"},
			"final_answer": {"type": "string"},
			"confidence": {"type": "string", "enum": ["low", "medium", "high"]}
		},
		"required": ["state", "reasoning"]
	}`, enumJSON)
	return []byte(schema)
}

// parseDecision converts the oracle's validated JSON object into a
// decision, failing only on shape errors the JSON schema itself did not
// already rule out (e.g. a non-string state value is schema-impossible,
// but an empty action object for a state that requires one is not).
func parseDecision(obj oracle.JsonObject) (*decision, error) {
	stateRaw, _ := obj["state"].(string)
	if stateRaw == "" {
		return nil, fmt.Errorf("reasoner: decision missing state")
	}
	reasoning, _ := obj["reasoning"].(string)

	dec := &decision{State: State(stateRaw), Reasoning: reasoning}

	if action, ok := obj["action"].(map[string]any); ok {
		dec.Action = action
	}
	if answer, ok := obj["final_answer"].(string); ok {
		dec.FinalAnswer = answer
	}
	if conf, ok := obj["confidence"].(string); ok {
		dec.Confidence = models.Confidence(conf)
	}
	return dec, nil
}
