// Package toolstore implements the Tool Store: the durable catalog of tools
// and the multi-signal search used to surface candidates to the reasoning
// agent.
package toolstore

import "errors"

var (
	// ErrNotFound is returned when a tool id or name has no matching record.
	ErrNotFound = errors.New("toolstore: tool not found")

	// ErrNameConflict is returned by Create/Update when the requested name
	// already belongs to a different tool.
	ErrNameConflict = errors.New("toolstore: tool name already exists")

	// ErrValidation is returned when a tool spec or patch fails field
	// validation (missing name, duplicate parameter names, unknown param
	// type, empty code body).
	ErrValidation = errors.New("toolstore: validation failed")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "toolstore: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
