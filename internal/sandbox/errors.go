package sandbox

import "fmt"

// ErrorKind classifies why a sandboxed execution did not return Ok(value).
type ErrorKind string

const (
	// ToolBugged means the call was refused before execution because the
	// tool's IsBugged flag was set.
	ToolBugged ErrorKind = "tool_bugged"
	// Inactive means the call was refused because the tool's IsActive flag
	// was false.
	Inactive ErrorKind = "inactive"
	// BadArguments means a declared required parameter was missing, or a
	// supplied argument failed its declared type.
	BadArguments ErrorKind = "bad_arguments"
	// CompileError means the tool's code failed to load into a sandbox
	// namespace (syntax error, missing run() entry symbol).
	CompileError ErrorKind = "compile_error"
	// RuntimeError means the tool code raised during execution, including
	// execute_tool chain cycles (see ExecError.Reason).
	RuntimeError ErrorKind = "runtime_error"
	// Timeout means the wall-clock execution budget was exceeded.
	Timeout ErrorKind = "timeout"
	// ResourceDenied means the code attempted a capability outside the
	// import/network/filesystem allowlist.
	ResourceDenied ErrorKind = "resource_denied"
)

// ExecError is the Err branch of the execute(tool, args) -> Result contract.
type ExecError struct {
	Kind ErrorKind
	// Reason disambiguates a RuntimeError without adding a new ErrorKind,
	// e.g. "cycle" or "depth_exceeded" for execute_tool chaining failures.
	Reason  string
	Message string
	Stack   string
}

func (e *ExecError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newExecError(kind ErrorKind, message string) *ExecError {
	return &ExecError{Kind: kind, Message: message}
}

func runtimeError(reason, message, stack string) *ExecError {
	return &ExecError{Kind: RuntimeError, Reason: reason, Message: message, Stack: stack}
}

// Result is the outcome of one execute(tool, args) call: exactly one of
// Value or Err is set.
type Result struct {
	Value any
	Err   *ExecError
}

// Ok reports whether the execution succeeded.
func (r Result) Ok() bool {
	return r.Err == nil
}
