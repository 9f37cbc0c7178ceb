package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/haasonsaas/toolmind/internal/config"
	"github.com/haasonsaas/toolmind/internal/observability"
	"github.com/haasonsaas/toolmind/internal/oracle"
	"github.com/haasonsaas/toolmind/internal/orchestrator"
	"github.com/haasonsaas/toolmind/internal/reasoner"
	"github.com/haasonsaas/toolmind/internal/sandbox"
	"github.com/haasonsaas/toolmind/internal/toolstore"
	"github.com/spf13/cobra"
)

// =============================================================================
// Shared wiring: config -> TS -> EX -> OR -> AG
// =============================================================================

// openStore builds the Tool Store per cfg.Database: an in-memory store when
// no URL is configured (the default, suited to a single-process deployment
// or tests), otherwise a SQL-backed store selected by the URL's scheme.
func openStore(cfg *config.Config) (toolstore.Store, func() error, error) {
	url := strings.TrimSpace(cfg.Database.URL)
	if url == "" {
		store := toolstore.NewMemStore(
			toolstore.WithSearchWeights(weightsFromConfig(cfg.Tools.Search.Weights)),
			toolstore.WithSynonyms(synonymsFromConfig(cfg.Tools.Search.Synonyms)),
			toolstore.WithDefaultThreshold(cfg.Tools.Search.SearchThreshold),
			toolstore.WithBugThreshold(cfg.Tools.Search.BugThreshold),
		)
		return store, func() error { return nil }, nil
	}

	pool := &toolstore.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  10 * time.Second,
	}
	opts := []toolstore.SQLStoreOption{
		toolstore.WithSQLSearchWeights(weightsFromConfig(cfg.Tools.Search.Weights)),
		toolstore.WithSQLSynonyms(synonymsFromConfig(cfg.Tools.Search.Synonyms)),
		toolstore.WithSQLDefaultThreshold(cfg.Tools.Search.SearchThreshold),
		toolstore.WithSQLBugThreshold(cfg.Tools.Search.BugThreshold),
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		store, err := toolstore.NewPostgresStore(url, pool, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres tool store: %w", err)
		}
		return store, store.Close, nil
	}
	store, err := toolstore.NewSQLiteStore(url, pool, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite tool store: %w", err)
	}
	return store, store.Close, nil
}

func weightsFromConfig(w config.SearchWeightsConfig) toolstore.Weights {
	if w.IsZero() {
		return toolstore.DefaultWeights()
	}
	return toolstore.Weights{
		ExactName:          w.ExactName,
		NameSubstring:      w.NameSubstring,
		TokenJaccard:       w.TokenJaccard,
		FuzzyName:          w.FuzzyName,
		DescriptionHit:     w.DescriptionHit,
		TagHit:             w.TagHit,
		CategoryHit:        w.CategoryHit,
		SynonymExpansion:   w.SynonymExpansion,
		PopularityBoostCap: w.PopularityBoostCap,
	}
}

func synonymsFromConfig(syn map[string][]string) map[string][]string {
	if len(syn) == 0 {
		return toolstore.DefaultSynonyms()
	}
	return syn
}

// openDBForMigration opens a *sql.DB for schema migrations using the same
// URL-scheme detection as openStore, returning the dialect name expected by
// toolstore.NewMigrator.
func openDBForMigration(cfg *config.Config) (*sql.DB, string, error) {
	url := strings.TrimSpace(cfg.Database.URL)
	if url == "" {
		return nil, "", fmt.Errorf("database.url is required to run migrations")
	}
	driver, dialectName := "sqlite", "sqlite"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver, dialectName = "postgres", "postgres"
	}
	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping database: %w", err)
	}
	return db, dialectName, nil
}

func buildExecutor(cfg *config.Config, store toolstore.Store, metrics *observability.Metrics, tracer *observability.Tracer) (*sandbox.Executor, error) {
	return sandbox.NewExecutor(store,
		sandbox.WithDefaultTimeout(cfg.Tools.Sandbox.DefaultTimeout),
		sandbox.WithAllowedImports(cfg.Tools.Sandbox.AllowedImports),
		sandbox.WithMetrics(metrics),
		sandbox.WithTracer(tracer),
	)
}

func buildOracle(cfg *config.Config) (*oracle.Oracle, int, []string, error) {
	var credentials []oracle.Credential
	var problems []string

	for name, provider := range cfg.LLM.Providers {
		switch name {
		case "anthropic":
			for _, key := range provider.APIKeys {
				p, err := oracle.NewAnthropicProvider(key, provider.BaseURL, provider.DefaultModel)
				if err != nil {
					problems = append(problems, fmt.Sprintf("anthropic: %v", err))
					continue
				}
				credentials = append(credentials, oracle.Credential{Provider: p, Model: provider.DefaultModel})
			}
		case "openai":
			for _, key := range provider.APIKeys {
				p, err := oracle.NewOpenAIProvider(key, provider.DefaultModel)
				if err != nil {
					problems = append(problems, fmt.Sprintf("openai: %v", err))
					continue
				}
				credentials = append(credentials, oracle.Credential{Provider: p, Model: provider.DefaultModel})
			}
		case "google":
			for _, key := range provider.APIKeys {
				p, err := oracle.NewGoogleProvider(key, provider.DefaultModel)
				if err != nil {
					problems = append(problems, fmt.Sprintf("google: %v", err))
					continue
				}
				credentials = append(credentials, oracle.Credential{Provider: p, Model: provider.DefaultModel})
			}
		case "bedrock":
			for _, bc := range provider.Bedrock {
				p, err := oracle.NewBedrockProvider(oracle.BedrockCredential{
					Region:          bc.Region,
					AccessKeyID:     bc.AccessKeyID,
					SecretAccessKey: bc.SecretAccessKey,
					SessionToken:    bc.SessionToken,
					DefaultModel:    bc.DefaultModel,
				})
				if err != nil {
					problems = append(problems, fmt.Sprintf("bedrock: %v", err))
					continue
				}
				credentials = append(credentials, oracle.Credential{Provider: p, Model: bc.DefaultModel})
			}
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown provider", name))
		}
	}

	or := oracle.New(oracle.Config{
		Credentials:   credentials,
		RatePerMinute: cfg.LLM.RatePerMinute,
	})
	return or, len(credentials), problems, nil
}

// =============================================================================
// Serve
// =============================================================================

func runServe(cmd *cobra.Command, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	ctx := cmd.Context()
	logger.Info(ctx, "configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"llm_default_provider", cfg.LLM.DefaultProvider,
		"agent_iter_max", cfg.Agent.IterMax,
	)

	metrics := observability.NewMetrics()
	var tracer *observability.Tracer
	if cfg.Observability.Tracing.Enabled {
		t, shutdown := observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			ServiceVersion: cfg.Observability.Tracing.ServiceVersion,
			Environment:    cfg.Observability.Tracing.Environment,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SamplingRate,
			Attributes:     cfg.Observability.Tracing.Attributes,
		})
		tracer = t
		defer shutdown(context.Background())
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open tool store: %w", err)
	}
	defer closeStore()

	instrumented := toolstore.NewInstrumented(store, metrics, tracer)

	executor, err := buildExecutor(cfg, instrumented, metrics, tracer)
	if err != nil {
		return fmt.Errorf("failed to build sandboxed executor: %w", err)
	}

	or, _, problems, err := buildOracle(cfg)
	if err != nil {
		return fmt.Errorf("failed to build oracle: %w", err)
	}
	for _, p := range problems {
		logger.Warn(ctx, "llm credential skipped", "reason", p)
	}

	agent := reasoner.New(instrumented, executor, or, reasoner.Config{
		IterMax:         cfg.Agent.IterMax,
		TMax:            cfg.Agent.TMax,
		SearchThreshold: cfg.Tools.Search.SearchThreshold,
	})

	compaction, err := toolstore.NewCompactionJob(instrumented, cfg.Tools.Compaction.Schedule, cfg.Tools.Compaction.Retention, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to build bug log compaction job: %w", err)
	}
	compaction.Start()
	defer compaction.Stop()

	cfgWatcher := config.NewWatcher(configPath, func(reloaded *config.Config) {
		if tunable, ok := store.(toolstore.SearchTunable); ok {
			tunable.SetSearchWeights(weightsFromConfig(reloaded.Tools.Search.Weights))
			tunable.SetSynonyms(synonymsFromConfig(reloaded.Tools.Search.Synonyms))
		}
		executor.SetAllowedImports(reloaded.Tools.Sandbox.AllowedImports)
		logger.Info(ctx, "configuration hot-reloaded",
			"search_weights_changed", true,
			"allowed_imports", reloaded.Tools.Sandbox.AllowedImports,
		)
	}, config.WithErrorHandler(func(err error) {
		logger.Warn(ctx, "configuration hot-reload failed, keeping previous settings", "error", err)
	}))
	if err := cfgWatcher.Start(cmd.Context()); err != nil {
		logger.Warn(ctx, "configuration file watch disabled", "error", err)
	}
	defer cfgWatcher.Stop()

	mux := http.NewServeMux()
	orchestrator.NewRESTHandler(instrumented, executor, agent).Routes(mux)
	mux.Handle("/ws", orchestrator.NewWSHandler(agent))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	server := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "toolmind server started", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info(ctx, "toolmind server stopped gracefully")
	return nil
}

// =============================================================================
// Migrate
// =============================================================================

func runMigrateUp(cmd *cobra.Command, configPath string, steps int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, dialectName, err := openDBForMigration(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := toolstore.NewMigrator(db, dialectName)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	applied, err := migrator.Up(cmd.Context(), steps)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}
	for _, id := range applied {
		fmt.Fprintf(out, "applied: %s\n", id)
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, configPath string, steps int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, dialectName, err := openDBForMigration(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := toolstore.NewMigrator(db, dialectName)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	rolled, err := migrator.Down(cmd.Context(), steps)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rolled) == 0 {
		fmt.Fprintln(out, "No migrations to roll back.")
		return nil
	}
	for _, id := range rolled {
		fmt.Fprintf(out, "rolled back: %s\n", id)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, dialectName, err := openDBForMigration(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := toolstore.NewMigrator(db, dialectName)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	applied, pending, err := migrator.Status(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "applied (%d):\n", len(applied))
	for _, a := range applied {
		fmt.Fprintf(out, "  %s (%s)\n", a.ID, a.AppliedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "pending (%d):\n", len(pending))
	for _, m := range pending {
		fmt.Fprintf(out, "  %s\n", m.ID)
	}
	return nil
}

// =============================================================================
// Tools
// =============================================================================

func runToolsList(cmd *cobra.Command, configPath, category string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tools, err := store.List(cmd.Context(), toolstore.ListOptions{Category: category})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, t := range tools {
		status := "active"
		if t.IsBugged {
			status = "bugged"
		} else if !t.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(out, "%-24s %-12s %s\n", t.Name, status, t.Description)
	}
	return nil
}

func runToolsShow(cmd *cobra.Command, configPath, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := store.GetByName(cmd.Context(), name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:        %s\n", t.Name)
	fmt.Fprintf(out, "description: %s\n", t.Description)
	fmt.Fprintf(out, "category:    %s\n", t.Category)
	fmt.Fprintf(out, "active:      %v\n", t.IsActive)
	fmt.Fprintf(out, "bugged:      %v (count: %d)\n", t.IsBugged, t.BugCount)
	fmt.Fprintf(out, "executions:  %d\n", t.ExecutionCount)
	fmt.Fprintln(out, "---")
	fmt.Fprintln(out, t.Code)
	return nil
}

// =============================================================================
// Keys
// =============================================================================

func runKeysCheck(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	_, count, problems, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "credentials configured: %d\n", count)
	if len(problems) == 0 {
		fmt.Fprintln(out, "no problems found")
		return nil
	}
	fmt.Fprintln(out, "problems:")
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return nil
}
