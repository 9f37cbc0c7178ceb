package config

import "time"

// ToolsConfig carries the Tool Store's and Sandboxed Executor's tunables
// from spec.md §6's configuration table.
type ToolsConfig struct {
	Search     ToolSearchConfig `yaml:"search"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Compaction CompactionConfig `yaml:"compaction"`
}

// CompactionConfig configures the periodic bug-log compaction sweep: how
// often it runs and how far back it keeps entries for tools that are not
// currently bugged.
type CompactionConfig struct {
	// Schedule is a robfig/cron/v3 expression (standard 5-field, no seconds
	// field). Empty disables the sweep.
	Schedule string `yaml:"schedule"`

	// Retention is how long a bug_log entry survives before compaction
	// drops it, for tools that are not currently bugged.
	Retention time.Duration `yaml:"retention"`
}

// ToolSearchConfig configures the Tool Store's bug-tracking and semantic
// search behavior: BUG_THRESHOLD, SEARCH_THRESHOLD, SEARCH_WEIGHTS, and
// SYNONYMS.
type ToolSearchConfig struct {
	// BugThreshold is the bug_count at which is_bugged flips true.
	BugThreshold int `yaml:"bug_threshold"`

	// SearchThreshold is the default minimum score a search hit must clear
	// to be considered a usable candidate (also AG's search-before-create
	// gate threshold).
	SearchThreshold float64 `yaml:"search_threshold"`

	// Weights overrides the per-signal coefficients of the search scoring
	// function. A zero value leaves toolstore.DefaultWeights in effect.
	Weights SearchWeightsConfig `yaml:"weights"`

	// Synonyms overrides the static synonym_expansion table. A nil map
	// leaves toolstore.DefaultSynonyms in effect.
	Synonyms map[string][]string `yaml:"synonyms"`
}

// SearchWeightsConfig mirrors toolstore.Weights for YAML configurability.
type SearchWeightsConfig struct {
	ExactName          float64 `yaml:"exact_name"`
	NameSubstring       float64 `yaml:"name_substring"`
	TokenJaccard        float64 `yaml:"token_jaccard"`
	FuzzyName           float64 `yaml:"fuzzy_name"`
	DescriptionHit      float64 `yaml:"description_hit"`
	TagHit              float64 `yaml:"tag_hit"`
	CategoryHit         float64 `yaml:"category_hit"`
	SynonymExpansion    float64 `yaml:"synonym_expansion"`
	PopularityBoostCap  float64 `yaml:"popularity_boost_cap"`
}

// IsZero reports whether no weight field was set, so callers can fall back
// to toolstore.DefaultWeights instead of a struct of all zeros.
func (w SearchWeightsConfig) IsZero() bool {
	return w == SearchWeightsConfig{}
}

// SandboxConfig configures the Sandboxed Executor: T_EXEC and
// ALLOWED_IMPORTS, plus the Firecracker pool backing it.
type SandboxConfig struct {
	// DefaultTimeout is T_exec, the wall-clock execution budget per call.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// AllowedImports is the capability allowlist enforced inside the
	// sandbox's import hook.
	AllowedImports []string `yaml:"allowed_imports"`

	// Firecracker configures the microVM pool backend.
	Firecracker FirecrackerConfig `yaml:"firecracker"`
}

// FirecrackerConfig configures the opt-in Firecracker microVM backend,
// mirroring sandbox.FirecrackerPoolConfig for YAML configurability.
type FirecrackerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KernelPath string `yaml:"kernel_path"`
	RootFSPath string `yaml:"rootfs_path"`
	VCPUs      int64  `yaml:"vcpus"`
	MemSizeMB  int64  `yaml:"mem_size_mb"`
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.Search.BugThreshold == 0 {
		cfg.Search.BugThreshold = 3
	}
	if cfg.Search.SearchThreshold == 0 {
		cfg.Search.SearchThreshold = 0.3
	}
	if cfg.Sandbox.DefaultTimeout == 0 {
		cfg.Sandbox.DefaultTimeout = 10 * time.Second
	}
	if len(cfg.Sandbox.AllowedImports) == 0 {
		cfg.Sandbox.AllowedImports = []string{"json", "datetime", "math", "requests"}
	}
	if cfg.Sandbox.Firecracker.VCPUs == 0 {
		cfg.Sandbox.Firecracker.VCPUs = 1
	}
	if cfg.Sandbox.Firecracker.MemSizeMB == 0 {
		cfg.Sandbox.Firecracker.MemSizeMB = 512
	}
	if cfg.Compaction.Schedule == "" {
		cfg.Compaction.Schedule = "0 * * * *"
	}
	if cfg.Compaction.Retention == 0 {
		cfg.Compaction.Retention = 7 * 24 * time.Hour
	}
}
