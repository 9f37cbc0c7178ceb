package sandbox

import (
	"context"
	"testing"
)

func TestFirecrackerRuntime_NoBackendConfigured(t *testing.T) {
	rt := &firecrackerRuntime{}

	if rt.Backend() != BackendFirecracker {
		t.Errorf("Backend() = %v, want %v", rt.Backend(), BackendFirecracker)
	}

	_, err := rt.Run(context.Background(), "/tmp/workspace", 1000, 512, false)
	if err == nil {
		t.Error("expected error when no FirecrackerBackend is wired")
	}

	if err := rt.Close(); err != nil {
		t.Errorf("Close() with nil backend should be a no-op, got %v", err)
	}
}

func TestDockerRuntime_Backend(t *testing.T) {
	rt := newDockerRuntime()
	if rt.Backend() != BackendDocker {
		t.Errorf("Backend() = %v, want %v", rt.Backend(), BackendDocker)
	}
	if rt.image == "" {
		t.Error("expected a default image to be set")
	}
}
