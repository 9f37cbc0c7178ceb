package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	jsval "github.com/santhosh-tekuri/jsonschema/v5"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// JsonObject is the decoded, schema-validated decision object decide()
// returns on success.
type JsonObject = map[string]any

// parseAndValidate decodes raw into a JsonObject and checks it against
// schema (a JSON Schema document). Parsing is lenient: LLMs routinely wrap
// JSON in code fences or emit trailing commas, so a strict encoding/json
// failure falls back to json5 (also used by the teacher's config loader
// for its own tolerance of hand-edited files) before giving up.
func parseAndValidate(raw []byte, schema []byte) (JsonObject, error) {
	raw = []byte(stripCodeFence(string(raw)))

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if err2 := json5.Unmarshal(raw, &decoded); err2 != nil {
			return nil, fmt.Errorf("not valid json: %w", err)
		}
	}

	compiled, err := jsval.CompileString("oracle.decision.schema.json", string(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decision is not a JSON object")
	}
	return obj, nil
}

// stripCodeFence removes a single leading/trailing ``` or ```json fence, a
// common LLM formatting habit this adapter tolerates rather than rejecting
// outright as malformed.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	body := strings.TrimPrefix(trimmed, "```")
	end := strings.LastIndex(body, "```")
	if end < 0 {
		return s
	}
	body = body[:end]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(body[:nl])
		if firstLine != "" && firstLine[0] != '{' && firstLine[0] != '[' {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}
