package sandbox

import (
	"context"
	"testing"
	"time"
)

type fakeRuntime struct {
	backend Backend
	closed  bool
}

func (f *fakeRuntime) Run(ctx context.Context, workspace string, cpuMillicores, memMB int, networkEnabled bool) (*ExecuteResult, error) {
	return &ExecuteResult{Stdout: resultMarker + "null"}, nil
}
func (f *fakeRuntime) Backend() Backend { return f.backend }
func (f *fakeRuntime) Close() error     { f.closed = true; return nil }

type fakePoolMetrics struct {
	lastBackend string
	lastCount   int
}

func (m *fakePoolMetrics) SetSandboxPoolWarm(backend string, count int) {
	m.lastBackend = backend
	m.lastCount = count
}

func TestPool_GetPut_ReusesWarmInstance(t *testing.T) {
	p := &Pool{
		backend:   BackendDocker,
		available: make(chan RuntimeExecutor, 2),
		max:       2,
	}
	rt := &fakeRuntime{backend: BackendDocker}
	p.available <- rt
	p.active = 1

	got, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != rt {
		t.Error("expected to receive the pre-warmed instance")
	}
	p.Put(got)

	select {
	case back := <-p.available:
		if back != rt {
			t.Error("expected the same instance to be returned to the pool")
		}
	default:
		t.Error("expected an instance to be available after Put")
	}
}

func TestPool_Put_ClosesWhenFull(t *testing.T) {
	p := &Pool{
		backend:   BackendDocker,
		available: make(chan RuntimeExecutor, 1),
		max:       1,
		active:    1,
	}
	p.available <- &fakeRuntime{backend: BackendDocker}

	overflow := &fakeRuntime{backend: BackendDocker}
	p.Put(overflow)

	if !overflow.closed {
		t.Error("expected overflow instance to be closed when the pool is full")
	}
}

func TestPool_Close_ClosesAllAvailable(t *testing.T) {
	p := &Pool{
		backend:   BackendDocker,
		available: make(chan RuntimeExecutor, 2),
		max:       2,
	}
	a := &fakeRuntime{backend: BackendDocker}
	b := &fakeRuntime{backend: BackendDocker}
	p.available <- a
	p.available <- b

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("expected all pooled instances to be closed")
	}

	if _, err := p.Get(context.Background()); err == nil {
		t.Error("expected Get to fail after Close")
	}
}

func TestPool_Get_GrowsLazilyUpToMax(t *testing.T) {
	p, err := NewPool(Config{Backend: BackendDocker, PoolSize: 0, MaxPoolSize: 1})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rt, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rt.Backend() != BackendDocker {
		t.Errorf("Backend() = %v, want %v", rt.Backend(), BackendDocker)
	}
}

func TestPool_CreateExecutor_UnsupportedBackend(t *testing.T) {
	p := &Pool{backend: Backend("unknown")}
	if _, err := p.createExecutor(); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestPool_CreateExecutor_FirecrackerRequiresBackend(t *testing.T) {
	p := &Pool{backend: BackendFirecracker}
	if _, err := p.createExecutor(); err == nil {
		t.Error("expected error when no FirecrackerBackend is configured")
	}
}

func TestPool_ReportWarm_UpdatesMetrics(t *testing.T) {
	metrics := &fakePoolMetrics{}
	p := &Pool{
		backend:   BackendDocker,
		available: make(chan RuntimeExecutor, 2),
		max:       2,
		metrics:   metrics,
	}
	p.available <- &fakeRuntime{backend: BackendDocker}
	p.reportWarm()

	if metrics.lastBackend != string(BackendDocker) {
		t.Errorf("lastBackend = %q, want %q", metrics.lastBackend, BackendDocker)
	}
	if metrics.lastCount != 1 {
		t.Errorf("lastCount = %d, want 1", metrics.lastCount)
	}
}
