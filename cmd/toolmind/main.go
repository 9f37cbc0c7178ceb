// Package main provides the CLI entry point for toolmind, an autonomous
// reasoning agent that answers questions by searching, creating, and
// executing its own tools.
//
// # Basic Usage
//
// Start the server:
//
//	toolmind serve --config toolmind.yaml
//
// Manage the tool catalog's database schema:
//
//	toolmind migrate up
//	toolmind migrate status
//
// List and inspect registered tools:
//
//	toolmind tools list
//	toolmind tools show <name>
package main

import (
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it without process exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toolmind",
		Short: "toolmind - an autonomous reasoning agent with a self-extending tool catalog",
		Long: `toolmind answers a question by reasoning over a catalog of sandboxed,
executable tools: it searches the catalog, writes new tools when none fit,
executes them in an isolated sandbox, and streams its reasoning as it goes.

Documentation: https://github.com/haasonsaas/toolmind`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildToolsCmd(),
		buildKeysCmd(),
	)

	return rootCmd
}
