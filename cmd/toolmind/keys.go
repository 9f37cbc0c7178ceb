package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// passwordReader reads a secret from the terminal without echoing it, the
// way nexus's promptPassword does. Abstracted behind an interface so
// runKeysAdd is testable without a real TTY.
type passwordReader interface {
	ReadPassword() (string, error)
}

// termPasswordReader reads from the process's actual stdin, falling back to
// a plain (echoed) line read when stdin isn't a terminal (e.g. piped input
// in scripts/CI), matching nexus's promptPassword behavior.
type termPasswordReader struct{}

func (termPasswordReader) ReadPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		key, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(key), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

// runKeysAdd prompts for an API key for provider and appends it to
// llm.providers.<provider>.api_keys in the config file at configPath.
func runKeysAdd(cmd *cobra.Command, configPath, provider string, reader passwordReader) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Enter API key for %s: ", provider)
	key, err := reader.ReadPassword()
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	if err := appendProviderAPIKey(configPath, provider, key); err != nil {
		return err
	}
	fmt.Fprintf(out, "API key added for provider %q in %s\n", provider, configPath)
	return nil
}

// appendProviderAPIKey edits configPath's YAML in place to append key to
// llm.providers.<provider>.api_keys, preserving the rest of the document's
// formatting and comments rather than re-marshaling the whole Config
// struct, the way nexus's saveProvisioningResult edits a yaml.Node in place.
func appendProviderAPIKey(configPath, provider, key string) error {
	rawData, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(rawData, &node); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if err := appendYAMLSequenceValue(&node, []string{"llm", "providers", provider, "api_keys"}, key); err != nil {
		return fmt.Errorf("append api key: %w", err)
	}

	output, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFilePreserveMode(configPath, output)
}

// appendYAMLSequenceValue walks path from node, creating missing mapping
// keys along the way, and appends value as a new scalar entry to the
// sequence found (or created) at that path. Adapted from nexus's
// setYAMLValue, which sets a single scalar rather than appending to a list.
func appendYAMLSequenceValue(node *yaml.Node, path []string, value string) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return fmt.Errorf("empty document")
		}
		return appendYAMLSequenceValue(node.Content[0], path, value)
	}

	if len(path) == 0 {
		if node.Kind == 0 {
			node.Kind = yaml.SequenceNode
		}
		if node.Kind != yaml.SequenceNode {
			return fmt.Errorf("expected a sequence, found %v", node.Kind)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
		return nil
	}

	if node.Kind == 0 {
		node.Kind = yaml.MappingNode
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at path %v", path)
	}

	key := path[0]
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return appendYAMLSequenceValue(node.Content[i+1], path[1:], value)
		}
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valueNode := &yaml.Node{}
	node.Content = append(node.Content, keyNode, valueNode)
	return appendYAMLSequenceValue(valueNode, path[1:], value)
}

// writeFilePreserveMode writes data to path atomically, preserving the
// file's existing permissions, or defaulting to 0600 for a new file since
// it may now hold an API key. Adapted from nexus's writeFilePreserveMode.
func writeFilePreserveMode(path string, data []byte) error {
	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
