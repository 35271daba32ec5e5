package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// configDefaults registers the built-in configuration under its viper keys
// so config-file and environment overrides merge onto it.
func configDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("registry_path", d.RegistryPath)
	viper.SetDefault("log_level", d.LogLevel)

	viper.SetDefault("llm.provider", d.LLM.Provider)
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.base_url", d.LLM.BaseURL)
	viper.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	viper.SetDefault("llm.temperature", d.LLM.Temperature)

	viper.SetDefault("pool.dir", d.Pool.Dir)
	viper.SetDefault("pool.max_concurrent", d.Pool.MaxConcurrent)
	viper.SetDefault("pool.user_agent", d.Pool.UserAgent)
	viper.SetDefault("pool.timeout_seconds", d.Pool.TimeoutSeconds)
	viper.SetDefault("pool.max_retries", d.Pool.MaxRetries)

	viper.SetDefault("literature.max_papers", d.Literature.MaxPapers)
	viper.SetDefault("literature.recency_years", d.Literature.RecencyYears)
	viper.SetDefault("literature.cache_path", d.Literature.CachePath)

	viper.SetDefault("generation.total_count", d.Generation.TotalCount)
	viper.SetDefault("generation.enable_tool_calling", d.Generation.EnableToolCalling)
	viper.SetDefault("generation.dev_isolation", d.Generation.DevIsolation)
}

// loadConfig assembles the effective configuration from viper: defaults,
// then the config file, then HYPOTHESIS_ENGINE_* environment variables, in
// increasing precedence.
func loadConfig() types.Config {
	return types.Config{
		RegistryPath: viper.GetString("registry_path"),
		LogLevel:     viper.GetString("log_level"),
		LLM: types.LLMConfig{
			Provider:    viper.GetString("llm.provider"),
			Model:       viper.GetString("llm.model"),
			BaseURL:     viper.GetString("llm.base_url"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
			Temperature: viper.GetFloat64("llm.temperature"),
		},
		Pool: types.PoolConfig{
			Dir:           viper.GetString("pool.dir"),
			MaxConcurrent: viper.GetInt("pool.max_concurrent"),
			HTTPConfig: types.HTTPConfig{
				UserAgent:      viper.GetString("pool.user_agent"),
				TimeoutSeconds: viper.GetInt("pool.timeout_seconds"),
				MaxRetries:     viper.GetInt("pool.max_retries"),
			},
		},
		Literature: types.LiteratureConfig{
			MaxPapers:    viper.GetInt("literature.max_papers"),
			RecencyYears: viper.GetInt("literature.recency_years"),
			CachePath:    viper.GetString("literature.cache_path"),
		},
		Generation: types.GenerationConfig{
			TotalCount:        viper.GetInt("generation.total_count"),
			EnableToolCalling: viper.GetBool("generation.enable_tool_calling"),
			DevIsolation:      viper.GetBool("generation.dev_isolation"),
		},
	}
}

// newLogger builds the process logger at the configured level. Output goes
// to stderr, keeping stdout free for command results and progress lines.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
