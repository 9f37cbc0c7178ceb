package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := writeConfig(t, `
llm:
  providers:
    anthropic:
      api_keys: ["sk-ant-test"]
tools:
  search:
    weights:
      exact_name: 1
`)

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	}, WithDebounce(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`
llm:
  providers:
    anthropic:
      api_keys: ["sk-ant-test"]
tools:
  search:
    weights:
      exact_name: 5
`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Tools.Search.Weights.ExactName != 5 {
			t.Fatalf("expected reloaded exact_name weight 5, got %v", cfg.Tools.Search.Weights.ExactName)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
}

func TestWatcherReportsParseErrorsWithoutCallingOnChange(t *testing.T) {
	path := writeConfig(t, `
llm:
  providers:
    anthropic:
      api_keys: ["sk-ant-test"]
`)

	onChangeCalled := make(chan struct{}, 1)
	onError := make(chan error, 1)
	w := NewWatcher(path, func(cfg *Config) {
		onChangeCalled <- struct{}{}
	}, WithDebounce(10*time.Millisecond), WithErrorHandler(func(err error) {
		onError <- err
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case <-onError:
	case <-onChangeCalled:
		t.Fatalf("onChange should not fire for an unparsable reload")
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error callback")
	}
}
