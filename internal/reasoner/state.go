// Package reasoner implements the Reasoning Agent (AG): a finite-state
// machine that answers one question by driving the Tool Store (TS), the
// Sandboxed Executor (EX), and the LLM Oracle Adapter (OR), emitting a
// trace of events as it goes.
package reasoner

// State is one node of the agent's finite-state machine.
type State string

// States, matching spec.md §4.4's table exactly. respond is the initial
// state; exit_response, timeout, and error are terminal.
const (
	StateRespond  State = "respond"
	StateFetchTool State = "fetch_tool"
	StateUseTool   State = "use_tool"
	StateAnalyzeComposite State = "analyze_tools_for_composite"
	StateCreateTool       State = "create_tool"
	StateExitResponse     State = "exit_response"
	StateTimeout          State = "timeout"
	StateError            State = "error"
)

// allowedNext is the allowed-transitions table. A decision whose chosen
// state is not in this list for the current state is rejected.
var allowedNext = map[State][]State{
	StateRespond:          {StateExitResponse, StateFetchTool, StateCreateTool},
	StateFetchTool:        {StateUseTool, StateAnalyzeComposite, StateCreateTool, StateExitResponse},
	StateUseTool:          {StateRespond, StateFetchTool, StateExitResponse},
	StateAnalyzeComposite: {StateUseTool, StateCreateTool, StateFetchTool},
	StateCreateTool:       {StateUseTool, StateExitResponse},
}

// IsTerminal reports whether s ends the FSM.
func IsTerminal(s State) bool {
	switch s {
	case StateExitResponse, StateTimeout, StateError:
		return true
	default:
		return false
	}
}

// isAllowed reports whether the table permits from -> to.
func isAllowed(from, to State) bool {
	for _, s := range allowedNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
