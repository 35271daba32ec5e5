package types

// HTTPConfig holds settings shared by all outbound HTTP calls.
type HTTPConfig struct {
	// UserAgent is sent on every request.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// TimeoutSeconds bounds a single request.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// LLMConfig selects and parameterizes the language-model backend.
type LLMConfig struct {
	// Provider selects the backend: "anthropic" or "openai".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the provider-specific model name.
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the provider endpoint, mainly for tests and
	// proxies. Empty means the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens caps the response length of ordinary calls.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the default sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// PoolConfig configures the shared-pool content cache.
type PoolConfig struct {
	// Dir is the pool root. Shared entries live under
	// Dir/{source}/{slug}/shared, per-run views under .../runs/{run_id}.
	Dir string `json:"dir" yaml:"dir"`

	// MaxConcurrent caps in-flight upstream calls per fan-out.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	HTTPConfig `yaml:",inline"`
}

// LiteratureConfig configures the review orchestrator.
type LiteratureConfig struct {
	// MaxPapers is the per-run paper quota.
	MaxPapers int `json:"max_papers" yaml:"max_papers"`

	// RecencyYears restricts searches to recent publications; 0 disables
	// the restriction.
	RecencyYears int `json:"recency_years" yaml:"recency_years"`

	// CachePath is the SQLite file holding cached review results. Empty
	// disables caching.
	CachePath string `json:"cache_path" yaml:"cache_path"`
}

// GenerationConfig configures the generation coordinator.
type GenerationConfig struct {
	// TotalCount is the hypothesis budget per run.
	TotalCount int `json:"total_count" yaml:"total_count"`

	// EnableToolCalling allows the tool-based strategy when literature is
	// available.
	EnableToolCalling bool `json:"enable_tool_calling" yaml:"enable_tool_calling"`

	// DevIsolation forces a 100% tool-based allocation for isolated
	// testing.
	DevIsolation bool `json:"dev_isolation" yaml:"dev_isolation"`
}

// Config is the root configuration of the pipeline.
type Config struct {
	// RegistryPath points at the tool-registry YAML. Empty selects the
	// built-in default configuration.
	RegistryPath string `json:"registry_path,omitempty" yaml:"registry_path,omitempty"`

	// LogLevel selects the zap level: debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Pool       PoolConfig       `json:"pool" yaml:"pool"`
	Literature LiteratureConfig `json:"literature" yaml:"literature"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			MaxTokens:   4096,
			Temperature: 1.0,
		},
		Pool: PoolConfig{
			Dir:           "paper_pool",
			MaxConcurrent: 3,
			HTTPConfig: HTTPConfig{
				UserAgent:      "hypothesis-engine/1.0",
				TimeoutSeconds: 60,
				MaxRetries:     3,
			},
		},
		Literature: LiteratureConfig{
			MaxPapers:    10,
			RecencyYears: 5,
			CachePath:    "review_cache.db",
		},
		Generation: GenerationConfig{
			TotalCount:        8,
			EnableToolCalling: true,
		},
	}
}
