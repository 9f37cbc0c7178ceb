package toolstore

import (
	"encoding/json"
	"fmt"
	"sync"

	jsval "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// ArgumentSchema builds a JSON Schema document describing the argument
// object a tool's parameters accept, for inclusion in the oracle's tool
// catalog prompt and for EX's pre-execution validation.
//
// Unlike internal/config's JSONSchema (which reflects a fixed Go struct via
// invopop/jsonschema), a tool's argument shape is data, not a type -
// discovered per-tool from its Parameters slice at runtime - so the
// document is built directly rather than through struct reflection.
func ArgumentSchema(tool *models.Tool) ([]byte, error) {
	properties := make(map[string]any, len(tool.Parameters))
	required := make([]string, 0, len(tool.Parameters))
	for _, p := range tool.Parameters {
		prop := map[string]any{"type": jsonSchemaType(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return json.MarshalIndent(schema, "", "  ")
}

func jsonSchemaType(t models.ParamType) string {
	switch t {
	case models.ParamNumber:
		return "number"
	case models.ParamBoolean:
		return "boolean"
	case models.ParamObject:
		return "object"
	case models.ParamArray:
		return "array"
	default:
		return "string"
	}
}

// argValidatorCache avoids recompiling the same tool's argument schema on
// every call; keyed by tool ID, invalidated implicitly because callers pass
// a fresh schema whenever parameters change (see ValidateArguments).
var argValidatorCache sync.Map

// ValidateArguments compiles tool's argument schema (cached by tool ID and
// a content fingerprint of its parameter list) and validates args against
// it, returning a BadArguments-classified error on mismatch.
func ValidateArguments(tool *models.Tool, args json.RawMessage) error {
	schemaBytes, err := ArgumentSchema(tool)
	if err != nil {
		return fmt.Errorf("toolstore: build argument schema: %w", err)
	}

	cacheKey := tool.ID + "|" + string(schemaBytes)
	var compiled *jsval.Schema
	if cached, ok := argValidatorCache.Load(cacheKey); ok {
		compiled = cached.(*jsval.Schema)
	} else {
		compiled, err = jsval.CompileString(tool.ID+".args.schema.json", string(schemaBytes))
		if err != nil {
			return fmt.Errorf("toolstore: compile argument schema: %w", err)
		}
		argValidatorCache.Store(cacheKey, compiled)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return &ValidationError{Field: "args", Message: "not valid JSON: " + err.Error()}
	}
	if err := compiled.Validate(decoded); err != nil {
		return &ValidationError{Field: "args", Message: err.Error()}
	}
	return nil
}
