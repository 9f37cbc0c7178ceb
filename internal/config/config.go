package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration structure for toolmind, following
// spec.md §6's configuration table: one YAML document, loaded once at
// startup, with environment overrides layered on top.
type Config struct {
	Version       int                 `yaml:"version"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Agent         AgentConfig         `yaml:"agent"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AgentConfig carries the Reasoning Agent's tunables from spec.md §6:
// ITER_MAX and T_MAX.
type AgentConfig struct {
	IterMax int           `yaml:"iter_max"`
	TMax    time.Duration `yaml:"t_max"`
}

// Load reads, parses, defaults, and validates a configuration file,
// following the teacher's loader.go pipeline: $include resolution, env
// var expansion, strict unknown-field decoding, env var overrides, then
// defaults and validation.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyAgentDefaults(&cfg.Agent)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
}

func applyAgentDefaults(cfg *AgentConfig) {
	if cfg.IterMax == 0 {
		cfg.IterMax = 8
	}
	if cfg.TMax == 0 {
		cfg.TMax = 120 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// applyEnvOverrides lets deployment environments (container orchestrators,
// CI) override the handful of settings that commonly differ per
// environment without editing the checked-in config file, the way the
// teacher's config.go does for NEXUS_HOST/DATABASE_URL/etc.
func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("TOOLMIND_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("TOOLMIND_HTTP_PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if value := strings.TrimSpace(os.Getenv("TOOLMIND_METRICS_PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = port
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}
	if value := strings.TrimSpace(os.Getenv("TOOLMIND_ITER_MAX")); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			cfg.Agent.IterMax = n
		}
	}
	if value := strings.TrimSpace(os.Getenv("TOOLMIND_T_MAX")); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			cfg.Agent.TMax = d
		}
	}
}

func validateConfig(cfg *Config) error {
	var issues []string

	if err := ValidateVersion(cfg.Version); err != nil {
		issues = append(issues, err.Error())
	}
	if cfg.Agent.IterMax <= 0 {
		issues = append(issues, "agent.iter_max must be positive")
	}
	if cfg.Agent.TMax <= 0 {
		issues = append(issues, "agent.t_max must be positive")
	}
	if cfg.Tools.Search.BugThreshold <= 0 {
		issues = append(issues, "tools.search.bug_threshold must be positive")
	}
	if cfg.Tools.Search.SearchThreshold < 0 || cfg.Tools.Search.SearchThreshold > 1 {
		issues = append(issues, "tools.search.search_threshold must be between 0 and 1")
	}
	if cfg.LLM.DefaultProvider != "" {
		if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("llm.default_provider %q has no matching llm.providers entry", cfg.LLM.DefaultProvider))
		}
	}
	for name, provider := range cfg.LLM.Providers {
		if len(provider.APIKeys) == 0 && name != "bedrock" {
			issues = append(issues, fmt.Sprintf("llm.providers.%s must declare at least one api key", name))
		}
	}

	issues = append(issues, pluginValidationIssues(cfg)...)

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

// ValidationError collects every configuration problem found in one pass,
// rather than failing on the first, the way the teacher's config
// validation does.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Issues, "; "))
}
