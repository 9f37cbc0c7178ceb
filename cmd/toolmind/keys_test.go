package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type fakePasswordReader struct {
	value string
	err   error
}

func (f fakePasswordReader) ReadPassword() (string, error) {
	return f.value, f.err
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "toolmind.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestAppendProviderAPIKeyCreatesMissingPath(t *testing.T) {
	path := writeTestConfig(t, "version: 1\n")

	if err := appendProviderAPIKey(path, "anthropic", "sk-test-123"); err != nil {
		t.Fatalf("appendProviderAPIKey() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	llm, _ := raw["llm"].(map[string]any)
	providers, _ := llm["providers"].(map[string]any)
	anthropic, _ := providers["anthropic"].(map[string]any)
	keys, _ := anthropic["api_keys"].([]any)
	if len(keys) != 1 || keys[0] != "sk-test-123" {
		t.Fatalf("expected api_keys = [sk-test-123], got %+v", keys)
	}
}

func TestAppendProviderAPIKeyAppendsToExistingList(t *testing.T) {
	path := writeTestConfig(t, `version: 1
llm:
  providers:
    anthropic:
      api_keys:
        - sk-existing
`)

	if err := appendProviderAPIKey(path, "anthropic", "sk-new"); err != nil {
		t.Fatalf("appendProviderAPIKey() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	llm := raw["llm"].(map[string]any)
	providers := llm["providers"].(map[string]any)
	anthropic := providers["anthropic"].(map[string]any)
	keys := anthropic["api_keys"].([]any)
	if len(keys) != 2 || keys[0] != "sk-existing" || keys[1] != "sk-new" {
		t.Fatalf("expected [sk-existing sk-new], got %+v", keys)
	}
}

func TestRunKeysAddRejectsEmptyKey(t *testing.T) {
	path := writeTestConfig(t, "version: 1\n")
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := runKeysAdd(cmd, path, "anthropic", fakePasswordReader{value: "   "})
	if err == nil {
		t.Fatalf("expected error for empty api key")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected 'empty' error, got %v", err)
	}
}

func TestRunKeysAddWritesKeyAndReportsSuccess(t *testing.T) {
	path := writeTestConfig(t, "version: 1\n")
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := runKeysAdd(cmd, path, "openai", fakePasswordReader{value: "sk-abc\n"}); err != nil {
		t.Fatalf("runKeysAdd() error = %v", err)
	}
	if !strings.Contains(buf.String(), `API key added for provider "openai"`) {
		t.Fatalf("expected success message, got %q", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "sk-abc") {
		t.Fatalf("expected api key persisted, got %s", data)
	}
}
