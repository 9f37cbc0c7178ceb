package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecuteResult is the raw process outcome of one sandboxed run, before it
// has been interpreted into a Result/ExecError.
type ExecuteResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// RuntimeExecutor runs a prepared workspace (tool.py, args.json, and the
// control FIFOs) inside one isolation backend.
type RuntimeExecutor interface {
	Run(ctx context.Context, workspace string, cpuMillicores, memMB int, networkEnabled bool) (*ExecuteResult, error)
	Backend() Backend
	Close() error
}

// dockerRuntime runs workspace/tool.py inside a throwaway Docker container,
// grounded on the teacher's dockerExecutor: --network none, cgroup CPU and
// memory caps, and a read-only bind mount of the scratch workspace.
type dockerRuntime struct {
	image string
}

func newDockerRuntime() *dockerRuntime {
	return &dockerRuntime{image: "python:3.11-alpine"}
}

func (d *dockerRuntime) Backend() Backend { return BackendDocker }

func (d *dockerRuntime) Run(ctx context.Context, workspace string, cpuMillicores, memMB int, networkEnabled bool) (*ExecuteResult, error) {
	args := []string{"run", "--rm"}
	if !networkEnabled {
		args = append(args, "--network", "none")
	}
	args = append(args,
		"--cpus", fmt.Sprintf("%.2f", float64(cpuMillicores)/1000.0),
		"--memory", fmt.Sprintf("%dm", memMB),
		"--memory-swap", fmt.Sprintf("%dm", memMB),
		"--pids-limit", "100",
		"--ulimit", "nofile=1024:1024",
		"-v", fmt.Sprintf("%s:/workspace:ro", workspace),
		"-w", "/workspace",
		d.image,
		"python", "/workspace/tool.py",
	)

	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecuteResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else if ctx.Err() != nil {
			result.TimedOut = true
		} else {
			return nil, fmt.Errorf("docker run: %w", err)
		}
	}
	return result, nil
}

func (d *dockerRuntime) Close() error { return nil }

// firecrackerRuntime boots a microVM per call via
// github.com/firecracker-microvm/firecracker-go-sdk, for deployments that
// opt into stronger isolation than container namespaces provide. Snapshot
// and vsock plumbing live in internal/sandbox/firecracker; this type adapts
// that backend to the RuntimeExecutor interface used by Pool.
type firecrackerRuntime struct {
	backend FirecrackerBackend
}

// FirecrackerBackend is the minimal surface Pool needs from a booted
// Firecracker microVM pool, kept as an interface so tests can substitute a
// fake without linking the real SDK, and exported so callers can build one
// with NewFirecrackerBackend and wire it in via WithFirecrackerBackend.
type FirecrackerBackend interface {
	Run(ctx context.Context, workspace string, cpuMillicores, memMB int) (*ExecuteResult, error)
	Close() error
}

func (f *firecrackerRuntime) Backend() Backend { return BackendFirecracker }

func (f *firecrackerRuntime) Run(ctx context.Context, workspace string, cpuMillicores, memMB int, networkEnabled bool) (*ExecuteResult, error) {
	if f.backend == nil {
		return nil, fmt.Errorf("firecracker backend not initialized")
	}
	// Firecracker microVMs are booted with no virtio-net device at all when
	// networkEnabled is false, so there is no networkEnabled argument to
	// forward here - the isolation is structural, not a runtime flag.
	return f.backend.Run(ctx, workspace, cpuMillicores, memMB)
}

func (f *firecrackerRuntime) Close() error {
	if f.backend == nil {
		return nil
	}
	return f.backend.Close()
}
