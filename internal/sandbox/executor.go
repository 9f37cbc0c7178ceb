package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/toolmind/internal/observability"
	"github.com/haasonsaas/toolmind/internal/toolstore"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// Backend names the sandbox isolation technology.
type Backend string

const (
	// BackendDocker runs each execution in a throwaway container with
	// --network=none, a read-only bind mount, and cgroup CPU/memory limits.
	BackendDocker Backend = "docker"
	// BackendFirecracker boots a microVM per call for workloads that need
	// stronger isolation than container namespaces provide.
	BackendFirecracker Backend = "firecracker"
)

// Config configures an Executor.
type Config struct {
	Backend Backend

	// DefaultTimeout is T_exec, the wall-clock execution budget.
	DefaultTimeout time.Duration

	DefaultCPUMillicores int
	DefaultMemoryMB      int

	// AllowedImports is the capability allowlist enforced inside the
	// sandbox's import hook. Defaults to DefaultAllowedImports.
	AllowedImports []string

	// WorkspaceRoot is the parent directory under which per-execution
	// scratch directories are created.
	WorkspaceRoot string

	PoolSize    int
	MaxPoolSize int

	// FirecrackerBackend is the booted microVM pool used when Backend is
	// BackendFirecracker. Required for that backend; ignored otherwise.
	FirecrackerBackend FirecrackerBackend

	// ArchiveThresholdBytes is the stack trace size above which
	// ReportBug's stack is uploaded to object storage and replaced with a
	// reference key instead of being stored inline.
	ArchiveThresholdBytes int

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Option configures an Executor at construction time.
type Option func(*Config)

// WithBackend sets the sandbox backend.
func WithBackend(b Backend) Option { return func(c *Config) { c.Backend = b } }

// WithDefaultTimeout sets T_exec.
func WithDefaultTimeout(d time.Duration) Option { return func(c *Config) { c.DefaultTimeout = d } }

// WithDefaultCPU sets the default CPU limit in millicores.
func WithDefaultCPU(millicores int) Option {
	return func(c *Config) { c.DefaultCPUMillicores = millicores }
}

// WithDefaultMemory sets the default memory limit in MB.
func WithDefaultMemory(mb int) Option { return func(c *Config) { c.DefaultMemoryMB = mb } }

// WithAllowedImports overrides the capability allowlist (ALLOWED_IMPORTS).
func WithAllowedImports(imports []string) Option {
	return func(c *Config) { c.AllowedImports = imports }
}

// WithWorkspaceRoot sets the scratch directory parent.
func WithWorkspaceRoot(root string) Option { return func(c *Config) { c.WorkspaceRoot = root } }

// WithPoolSize sets the initial warm-instance count.
func WithPoolSize(n int) Option { return func(c *Config) { c.PoolSize = n } }

// WithMaxPoolSize sets the maximum pooled instance count.
func WithMaxPoolSize(n int) Option { return func(c *Config) { c.MaxPoolSize = n } }

// WithFirecrackerBackend wires a booted microVM pool for BackendFirecracker.
func WithFirecrackerBackend(b FirecrackerBackend) Option {
	return func(c *Config) { c.FirecrackerBackend = b }
}

// WithArchiveThreshold sets the stack size above which ReportBug archives
// to object storage instead of storing inline.
func WithArchiveThreshold(bytes int) Option {
	return func(c *Config) { c.ArchiveThresholdBytes = bytes }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *observability.Metrics) Option { return func(c *Config) { c.Metrics = m } }

// WithTracer attaches a tracer.
func WithTracer(t *observability.Tracer) Option { return func(c *Config) { c.Tracer = t } }

// Executor runs tool code against a Store, enforcing the execute(tool,
// args) -> Result contract of the Sandboxed Executor (EX).
type Executor struct {
	store   toolstore.Store
	pool    *Pool
	archive Archiver
	config  Config

	// importsMu guards allowedImports, which SetAllowedImports may update
	// at runtime (config hot-reload) independent of the rest of config.
	importsMu      sync.RWMutex
	allowedImports []string
}

// NewExecutor builds an Executor backed by store for tool lookup/telemetry.
func NewExecutor(store toolstore.Store, opts ...Option) (*Executor, error) {
	cfg := Config{
		Backend:               BackendDocker,
		DefaultTimeout:        10 * time.Second,
		DefaultCPUMillicores:  1000,
		DefaultMemoryMB:       512,
		AllowedImports:        DefaultAllowedImports,
		PoolSize:              2,
		MaxPoolSize:           8,
		ArchiveThresholdBytes: 8 << 10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}

	return &Executor{
		store:          store,
		pool:           pool,
		archive:        noopArchiver{},
		config:         cfg,
		allowedImports: cfg.AllowedImports,
	}, nil
}

// SetAllowedImports replaces the capability allowlist enforced by future
// executions. Used by the config hot-reload watcher to apply a changed
// ALLOWED_IMPORTS without restarting the process.
func (e *Executor) SetAllowedImports(imports []string) {
	e.importsMu.Lock()
	e.allowedImports = append([]string(nil), imports...)
	e.importsMu.Unlock()
}

func (e *Executor) currentAllowedImports() []string {
	e.importsMu.RLock()
	defer e.importsMu.RUnlock()
	return e.allowedImports
}

// WithArchiver swaps the default no-op stack archiver for a real one (e.g.
// an S3-backed Archiver), returning the same Executor for chaining.
func (e *Executor) WithArchiver(a Archiver) *Executor {
	if a != nil {
		e.archive = a
	}
	return e
}

// Execute runs tool's code against args per the execution contract: resolve
// guards, validate/coerce arguments, load into a fresh namespace, run with a
// timeout, and record telemetry/bugs on the store.
func (e *Executor) Execute(ctx context.Context, tool *models.Tool, args map[string]any) Result {
	if e.config.Tracer != nil {
		var span interface{ End() }
		ctx, span = e.config.Tracer.TraceToolExecution(ctx, tool.Name)
		defer span.End()
	}
	start := time.Now()
	result := e.executeWithState(ctx, tool, args, newChainState())
	if e.config.Metrics != nil {
		outcome := "ok"
		if result.Err != nil {
			outcome = string(result.Err.Kind)
		}
		e.config.Metrics.RecordSandboxExecution(tool.Name, outcome, time.Since(start).Seconds())
	}
	return result
}

// executeWithState is the recursive entry point shared by Execute (fresh
// call path) and resolveChain (nested execute_tool calls within the same
// call path), so depth/cycle tracking spans the whole chain.
func (e *Executor) executeWithState(ctx context.Context, tool *models.Tool, args map[string]any, state *chainState) Result {
	if tool.IsBugged {
		return Result{Err: newExecError(ToolBugged, "tool "+tool.Name+" is flagged bugged")}
	}
	if !tool.IsActive {
		return Result{Err: newExecError(Inactive, "tool "+tool.Name+" is inactive")}
	}

	coerced, execErr := coerceArguments(tool, args)
	if execErr != nil {
		return Result{Err: execErr}
	}

	timeout := e.config.DefaultTimeout
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := e.runInSandbox(execCtx, tool, coerced, state)

	if result.Err != nil && result.Err.Kind != ToolBugged && result.Err.Kind != Inactive && result.Err.Kind != BadArguments {
		stack := e.archiveStack(ctx, tool.ID, result.Err.Stack)
		if _, bugErr := e.store.ReportBug(ctx, tool.ID, string(result.Err.Kind), result.Err.Message, stack); bugErr != nil && e.config.Metrics != nil {
			e.config.Metrics.RecordError("sandbox", "report_bug_failed")
		}
	}
	if err := e.store.RecordExecution(ctx, tool.ID); err != nil && e.config.Metrics != nil {
		e.config.Metrics.RecordError("sandbox", "record_execution_failed")
	}

	return result
}

func (e *Executor) archiveStack(ctx context.Context, toolID, stack string) string {
	if len(stack) <= e.config.ArchiveThresholdBytes {
		return stack
	}
	ref, err := e.archive.Archive(ctx, toolID, stack)
	if err != nil {
		// Fall back to storing the trace inline rather than dropping it.
		return stack
	}
	return ref
}

// Close releases pooled sandbox resources.
func (e *Executor) Close() error {
	return e.pool.Close()
}
