package sandbox

import "testing"

func TestExecError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExecError
		want string
	}{
		{
			name: "without reason",
			err:  newExecError(Timeout, "exceeded budget"),
			want: "timeout: exceeded budget",
		},
		{
			name: "with reason",
			err:  runtimeError("cycle", "tool already on call path", ""),
			want: "runtime_error(cycle): tool already on call path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_Ok(t *testing.T) {
	ok := Result{Value: 42}
	if !ok.Ok() {
		t.Error("expected Ok() true when Err is nil")
	}

	failed := Result{Err: newExecError(BadArguments, "missing x")}
	if failed.Ok() {
		t.Error("expected Ok() false when Err is set")
	}
}

func TestErrorKindConstants(t *testing.T) {
	kinds := map[ErrorKind]string{
		ToolBugged:     "tool_bugged",
		Inactive:       "inactive",
		BadArguments:   "bad_arguments",
		CompileError:   "compile_error",
		RuntimeError:   "runtime_error",
		Timeout:        "timeout",
		ResourceDenied: "resource_denied",
	}
	for kind, want := range kinds {
		if string(kind) != want {
			t.Errorf("ErrorKind %v = %q, want %q", kind, string(kind), want)
		}
	}
}
