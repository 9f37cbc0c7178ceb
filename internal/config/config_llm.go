package config

// LLMConfig configures the LLM Oracle Adapter: LLM_KEYS (the credential
// ring, grouped by provider) and LLM_RATE_PER_MINUTE.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
	RatePerMinute   int                          `yaml:"rate_per_minute"`
}

// LLMProviderConfig is one provider's entry in the credential ring. Most
// providers authenticate with a list of plain API keys (LLM_KEYS supports
// more than one key per provider, so the ring can rotate past exhausted
// quota without waiting); Bedrock instead authenticates with AWS
// credentials, so it gets its own field.
type LLMProviderConfig struct {
	DefaultModel string             `yaml:"default_model"`
	BaseURL      string             `yaml:"base_url"`
	APIKeys      []string           `yaml:"api_keys"`
	Bedrock      []BedrockKeyConfig `yaml:"bedrock_credentials,omitempty"`
}

// BedrockKeyConfig is one AWS credential set for the Bedrock provider,
// mirroring oracle.BedrockCredential for YAML configurability.
type BedrockKeyConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token,omitempty"`
	DefaultModel    string `yaml:"default_model"`
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.RatePerMinute == 0 {
		cfg.RatePerMinute = 60
	}
}
