package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Pool manages a set of warm RuntimeExecutor instances for one backend,
// grounded on the teacher's languagePool but keyed by backend instead of
// by language, since every tool in toolmind is Python.
type Pool struct {
	backend     Backend
	firecracker FirecrackerBackend
	available   chan RuntimeExecutor
	metrics     poolMetrics

	mu     sync.Mutex
	active int
	max    int
	closed bool
}

// poolMetrics is the subset of *observability.Metrics the pool needs,
// narrowed to keep this file testable without constructing a full Metrics.
type poolMetrics interface {
	SetSandboxPoolWarm(backend string, count int)
}

// NewPool creates a pool for cfg.Backend and pre-warms cfg.PoolSize
// instances, matching the teacher's best-effort pre-warm (a failed warm
// create is skipped; the pool still grows lazily on demand).
func NewPool(cfg Config) (*Pool, error) {
	maxSize := cfg.MaxPoolSize
	if maxSize <= 0 {
		maxSize = 1
	}
	p := &Pool{
		backend:     cfg.Backend,
		firecracker: cfg.FirecrackerBackend,
		available:   make(chan RuntimeExecutor, maxSize),
		max:         maxSize,
	}
	if cfg.Metrics != nil {
		p.metrics = cfg.Metrics
	}

	for i := 0; i < cfg.PoolSize && i < maxSize; i++ {
		rt, err := p.createExecutor()
		if err != nil {
			continue
		}
		p.available <- rt
		p.active++
	}
	p.reportWarm()
	return p, nil
}

func (p *Pool) createExecutor() (RuntimeExecutor, error) {
	switch p.backend {
	case BackendDocker:
		return newDockerRuntime(), nil
	case BackendFirecracker:
		if p.firecracker == nil {
			return nil, fmt.Errorf("sandbox backend firecracker requires a FirecrackerBackend (see WithFirecrackerBackend)")
		}
		return &firecrackerRuntime{backend: p.firecracker}, nil
	default:
		return nil, fmt.Errorf("unsupported sandbox backend: %s", p.backend)
	}
}

// Get retrieves a warm RuntimeExecutor, creating one on demand up to max,
// or waiting up to 10s for one to free up.
func (p *Pool) Get(ctx context.Context) (RuntimeExecutor, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("sandbox pool is closed")
	}
	p.mu.Unlock()

	select {
	case rt := <-p.available:
		p.reportWarm()
		return rt, nil
	default:
	}

	p.mu.Lock()
	if p.active < p.max {
		p.active++
		p.mu.Unlock()
		rt, err := p.createExecutor()
		if err != nil {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			return nil, err
		}
		return rt, nil
	}
	p.mu.Unlock()

	select {
	case rt := <-p.available:
		p.reportWarm()
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, errors.New("timeout waiting for sandbox executor")
	}
}

// Put returns rt to the pool, or closes it if the pool is full/closed.
func (p *Pool) Put(rt RuntimeExecutor) {
	if rt == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		rt.Close()
		return
	}

	select {
	case p.available <- rt:
		p.reportWarm()
	default:
		rt.Close()
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

// Close shuts down every pooled executor.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.available)
	for rt := range p.available {
		rt.Close()
	}
	return nil
}

func (p *Pool) reportWarm() {
	if p.metrics == nil {
		return
	}
	p.metrics.SetSandboxPoolWarm(string(p.backend), len(p.available))
}
