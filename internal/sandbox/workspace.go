package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/haasonsaas/toolmind/pkg/models"
)

const (
	workspaceArgsFile       = "args.json"
	workspaceScriptFile     = "tool.py"
	workspaceControlReqFile = "control.req"
	workspaceControlResFile = "control.resp"
)

// runInSandbox prepares a scratch workspace for one execution, serves
// execute_tool callbacks over the control FIFOs for the lifetime of the
// run, and interprets the backend's raw ExecuteResult into a Result.
func (e *Executor) runInSandbox(ctx context.Context, tool *models.Tool, args map[string]any, state *chainState) Result {
	workspace, err := e.prepareWorkspace(tool, args)
	if err != nil {
		return Result{Err: newExecError(CompileError, fmt.Sprintf("prepare workspace: %v", err))}
	}
	defer os.RemoveAll(workspace)

	reqPath := filepath.Join(workspace, workspaceControlReqFile)
	respPath := filepath.Join(workspace, workspaceControlResFile)
	if err := unix.Mkfifo(reqPath, 0o600); err != nil {
		return Result{Err: newExecError(CompileError, fmt.Sprintf("create control pipe: %v", err))}
	}
	if err := unix.Mkfifo(respPath, 0o600); err != nil {
		return Result{Err: newExecError(CompileError, fmt.Sprintf("create control pipe: %v", err))}
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	var serveWG sync.WaitGroup
	serveWG.Add(1)
	go func() {
		defer serveWG.Done()
		e.serveControlPipe(serveCtx, state, reqPath, respPath)
	}()
	defer serveWG.Wait()

	rt, err := e.pool.Get(ctx)
	if err != nil {
		return Result{Err: newExecError(ResourceDenied, fmt.Sprintf("acquire sandbox: %v", err))}
	}
	defer e.pool.Put(rt)

	raw, err := rt.Run(ctx, workspace, e.config.DefaultCPUMillicores, e.config.DefaultMemoryMB, false)
	if err != nil {
		return Result{Err: newExecError(CompileError, fmt.Sprintf("sandbox run: %v", err))}
	}

	return interpretResult(raw)
}

func (e *Executor) prepareWorkspace(tool *models.Tool, args map[string]any) (string, error) {
	root := e.config.WorkspaceRoot
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", err
		}
	}
	workspace, err := os.MkdirTemp(root, "toolmind-sandbox-*")
	if err != nil {
		return "", err
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		os.RemoveAll(workspace)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(workspace, workspaceArgsFile), argsJSON, 0o644); err != nil {
		os.RemoveAll(workspace)
		return "", err
	}

	script, err := buildPreamble(
		e.currentAllowedImports(),
		tool.Code,
		"/workspace/"+workspaceArgsFile,
		"/workspace/"+workspaceControlReqFile,
		"/workspace/"+workspaceControlResFile,
	)
	if err != nil {
		os.RemoveAll(workspace)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(workspace, workspaceScriptFile), []byte(script), 0o644); err != nil {
		os.RemoveAll(workspace)
		return "", err
	}

	return workspace, nil
}

// serveControlPipe opens the request/response FIFOs and serves execute_tool
// calls until the sandboxed process closes the request pipe or ctx is
// cancelled. Opening blocks until the sandboxed process opens its end, so
// this must run in its own goroutine alongside the backend Run call.
func (e *Executor) serveControlPipe(ctx context.Context, state *chainState, reqPath, respPath string) {
	reqFile, err := openFIFONonBlocking(reqPath, unix.O_RDONLY)
	if err != nil {
		return
	}
	defer reqFile.Close()

	respFile, err := openFIFONonBlocking(respPath, unix.O_WRONLY)
	if err != nil {
		return
	}
	defer respFile.Close()

	e.serveChain(ctx, state, reqFile, respFile)
}

// openFIFONonBlocking opens path without blocking forever when the peer
// never shows up, retrying briefly against ctx-less callers via O_NONBLOCK,
// then falling back to a context-respecting blocking retry loop is left to
// the caller's ctx deadline (the surrounding execution timeout already
// bounds this).
func openFIFONonBlocking(path string, flag int) (*os.File, error) {
	fd, err := unix.Open(path, flag, 0)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// interpretResult classifies a raw process outcome into the execute(tool,
// args) -> Result contract's error kinds.
func interpretResult(raw *ExecuteResult) Result {
	if raw.TimedOut {
		return Result{Err: newExecError(Timeout, "execution exceeded the wall-clock budget")}
	}

	if value, ok := extractMarked(raw.Stdout, resultMarker); ok {
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return Result{Err: runtimeError("bad_result_encoding", err.Error(), raw.Stdout)}
		}
		return Result{Value: parsed}
	}

	if payload, ok := extractMarked(raw.Stderr, errorMarker); ok {
		var errInfo struct {
			Message string `json:"message"`
			Stack   string `json:"stack"`
		}
		if err := json.Unmarshal([]byte(payload), &errInfo); err == nil {
			return Result{Err: runtimeError("raised", errInfo.Message, errInfo.Stack)}
		}
	}

	// The process exited without the driver ever reaching its try block
	// (e.g. a SyntaxError while the interpreter parsed the script), so this
	// is a load failure rather than a run() failure.
	return Result{Err: newExecError(CompileError, fmt.Sprintf("sandbox exited %d without a result", raw.ExitCode))}
}

func extractMarked(output, marker string) (string, bool) {
	idx := strings.Index(output, marker)
	if idx < 0 {
		return "", false
	}
	rest := output[idx+len(marker):]
	if end := strings.IndexByte(rest, '\n'); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}
