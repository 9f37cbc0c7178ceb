package sandbox

import (
	"context"
	"io"
	"sync"
)

// MaxChainDepth caps recursive execute_tool nesting.
const MaxChainDepth = 4

// chainRequest is one execute_tool(name_or_id, args) call arriving over the
// control pipe from the sandboxed interpreter.
type chainRequest struct {
	NameOrID string         `json:"name_or_id"`
	Args     map[string]any `json:"args"`
}

// chainResponse is the reply written back to the sandboxed interpreter.
type chainResponse struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// chainState tracks the active execute_tool call path for one top-level
// execution, so depth and cycles are enforced in the Go parent where the
// sandboxed process cannot tamper with them.
type chainState struct {
	mu    sync.Mutex
	depth int
	path  map[string]bool
}

func newChainState() *chainState {
	return &chainState{path: make(map[string]bool)}
}

func (cs *chainState) enter(toolID string) (ok bool, reason string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.depth >= MaxChainDepth {
		return false, "depth_exceeded"
	}
	if cs.path[toolID] {
		return false, "cycle"
	}
	cs.path[toolID] = true
	cs.depth++
	return true, ""
}

func (cs *chainState) leave(toolID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.depth--
	delete(cs.path, toolID)
}

// resolveChain looks up a tool by id or name and re-enters the executor,
// enforcing MaxChainDepth and cycle detection against the active call path.
func (e *Executor) resolveChain(ctx context.Context, state *chainState, nameOrID string, args map[string]any) (any, *ExecError) {
	tool, err := e.store.GetByID(ctx, nameOrID)
	if err != nil {
		tool, err = e.store.GetByName(ctx, nameOrID)
	}
	if err != nil || tool == nil {
		return nil, runtimeError("not_found", "execute_tool: no such tool "+nameOrID, "")
	}

	ok, reason := state.enter(tool.ID)
	if !ok {
		return nil, runtimeError(reason, "execute_tool chain rejected: "+reason, "")
	}
	defer state.leave(tool.ID)

	result := e.executeWithState(ctx, tool, args, state)
	return result.Value, result.Err
}

// serveChain reads execute_tool requests from reqR (fd 3 from the sandboxed
// process's perspective) and writes responses to respW (fd 4) until reqR is
// closed or ctx is cancelled. It runs in its own goroutine for the duration
// of one execution.
func (e *Executor) serveChain(ctx context.Context, state *chainState, reqR io.Reader, respW io.Writer) {
	for {
		var req chainRequest
		if err := readFrame(reqR, &req); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		value, execErr := e.resolveChain(ctx, state, req.NameOrID, req.Args)
		resp := chainResponse{Value: value}
		if execErr != nil {
			resp.Error = execErr.Error()
		}
		if err := writeFrame(respW, resp); err != nil {
			return
		}
	}
}
