// Package models holds the wire and storage structs shared across toolmind's
// tool store, sandbox executor, oracle adapter, and reasoning agent.
package models

import (
	"encoding/json"
	"regexp"
	"time"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

// Parameter types a tool may declare, matching the JSON Schema primitives
// toolmind validates arguments against.
const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
)

// Parameter describes one named input a tool accepts.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// BugEntry is one record in a tool's bounded bug ring buffer.
type BugEntry struct {
	Timestamp time.Time `json:"ts"`
	ErrorKind string    `json:"error_kind"`
	Message   string    `json:"message"`
	// Stack holds the captured stack/traceback text, or an "s3://bucket/key"
	// reference when the trace exceeded the inline size the ring keeps.
	Stack string `json:"stack"`
}

// BugLogCap is the maximum number of entries kept in a tool's bug ring buffer.
const BugLogCap = 32

// DefaultBugThreshold is the bug count that flips a tool's IsBugged flag when
// no override is configured.
const DefaultBugThreshold = 3

// nameFormat matches a valid Python identifier: a tool's name doubles as the
// function name the sandboxed executor binds its code under.
var nameFormat = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidName reports whether name matches the tool name format
// [a-zA-Z_][a-zA-Z0-9_]*.
func ValidName(name string) bool {
	return nameFormat.MatchString(name)
}

// Tool is the central entity of the tool store: a named, parameterized unit
// of Python code that the sandboxed executor can run.
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Parameters  []Parameter `json:"parameters"`
	// Code is the source of a single callable body that must define
	// run(**kwargs) -> value.
	Code string `json:"code"`

	IsActive bool `json:"is_active"`
	IsBugged bool `json:"is_bugged"`

	BugCount int        `json:"bug_count"`
	BugLog   []BugEntry `json:"bug_log"`

	ExecutionCount  int64      `json:"execution_count"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of t so callers can mutate the result without
// racing with concurrent store access.
func (t *Tool) Clone() *Tool {
	if t == nil {
		return nil
	}
	out := *t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.Parameters != nil {
		out.Parameters = append([]Parameter(nil), t.Parameters...)
	}
	if t.BugLog != nil {
		out.BugLog = append([]BugEntry(nil), t.BugLog...)
	}
	if t.LastExecutedAt != nil {
		ts := *t.LastExecutedAt
		out.LastExecutedAt = &ts
	}
	if t.LastErrorAt != nil {
		ts := *t.LastErrorAt
		out.LastErrorAt = &ts
	}
	return &out
}

// ParamNames returns the declared parameter names in order.
func (t *Tool) ParamNames() []string {
	names := make([]string, len(t.Parameters))
	for i, p := range t.Parameters {
		names[i] = p.Name
	}
	return names
}

// ExampleInput builds a best-effort example argument map from the tool's
// declared parameters, used to hint the oracle on retry.
func (t *Tool) ExampleInput() map[string]any {
	if len(t.Parameters) == 0 {
		return nil
	}
	out := make(map[string]any, len(t.Parameters))
	for _, p := range t.Parameters {
		out[p.Name] = exampleValue(p.Type)
	}
	return out
}

func exampleValue(t ParamType) any {
	switch t {
	case ParamNumber:
		return 0
	case ParamBoolean:
		return false
	case ParamObject:
		return map[string]any{}
	case ParamArray:
		return []any{}
	default:
		return ""
	}
}

// ToolSpec is the input to Store.Create: everything the caller supplies when
// registering a new tool. IsActive defaults to true when unset by the caller.
type ToolSpec struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	Parameters  []Parameter
	Code        string
	IsActive    *bool
}

// ToolPatch is a partial update applied by Store.Update. Nil fields are left
// unchanged.
type ToolPatch struct {
	Name        *string
	Description *string
	Category    *string
	Tags        *[]string
	Parameters  *[]Parameter
	Code        *string
	IsActive    *bool
}

// SearchHit pairs a tool with its combined relevance score.
type SearchHit struct {
	Tool  *Tool   `json:"tool"`
	Score float64 `json:"score"`
}

// MarshalBugLog serializes a bug log ring buffer for storage in a JSON column.
func MarshalBugLog(entries []BugEntry) (json.RawMessage, error) {
	if len(entries) == 0 {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(entries)
}
