// commands.go contains the cobra command tree. Each command builder wires
// flags to a handler function defined in handlers.go, the same split the
// teacher uses between commands_*.go and handlers_*.go.
package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "toolmind.yaml"

// =============================================================================
// Serve
// =============================================================================

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the toolmind server",
		Long: `Start toolmind's REST and WebSocket server.

The server will:
1. Load and validate configuration
2. Open the Tool Store (in-memory or a configured database)
3. Construct the Sandboxed Executor, LLM Oracle, and Reasoning Agent
4. Serve REST (/ask, /tools...) and WebSocket (/ws) endpoints

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  toolmind serve
  toolmind serve --config /etc/toolmind/production.yaml
  toolmind serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// =============================================================================
// Migrate
// =============================================================================

func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Tool Store's database schema",
	}
	cmd.AddCommand(buildMigrateUpCmd(), buildMigrateDownCmd(), buildMigrateStatusCmd())
	return cmd
}

func buildMigrateUpCmd() *cobra.Command {
	var configPath string
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd, configPath, steps)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all pending)")
	return cmd
}

func buildMigrateDownCmd() *cobra.Command {
	var configPath string
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateDown(cmd, configPath, steps)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	return cmd
}

func buildMigrateStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

// =============================================================================
// Tools
// =============================================================================

func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool catalog",
	}
	cmd.AddCommand(buildToolsListCmd(), buildToolsShowCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	var configPath string
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tools in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsList(cmd, configPath, category)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}

func buildToolsShowCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show one tool's definition and bug log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsShow(cmd, configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

// =============================================================================
// Keys
// =============================================================================

func buildKeysCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Validate configured LLM credentials without starting the server",
		Long: `Loads the configuration's llm.providers section and reports, per
provider, how many credentials are configured and which ones failed to
construct (missing key, bad region, etc.), without making any LLM call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCheck(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.AddCommand(buildKeysAddCmd())
	return cmd
}

func buildKeysAddCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "add [provider]",
		Short: "Add an API key for a provider without echoing it to the terminal",
		Long: `Prompts for an API key and appends it to llm.providers.<provider>.api_keys
in the configuration file, so it joins the credential ring on the next
restart (or immediately, via the config hot-reload watcher, for fields it
covers).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysAdd(cmd, configPath, args[0], termPasswordReader{})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}
