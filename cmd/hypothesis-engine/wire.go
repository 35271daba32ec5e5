package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/hypothesis-engine/internal/cache"
	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/internal/mcp"
	"github.com/pdiddy/hypothesis-engine/internal/pool"
	"github.com/pdiddy/hypothesis-engine/internal/registry"
	"github.com/pdiddy/hypothesis-engine/internal/secrets"
	"github.com/pdiddy/hypothesis-engine/internal/tools"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// buildRunner loads the tool registry and wires one caller per enabled
// server. Servers on the native transport are served in process from the
// local paper pool; everything else speaks streamable HTTP.
func buildRunner(cfg types.Config) (*tools.Runner, error) {
	reg, err := registry.Load(registry.Options{Path: cfg.RegistryPath, Log: logger})
	if err != nil {
		return nil, err
	}

	callers := make(map[string]mcp.Caller)
	for id, server := range reg.EnabledServers() {
		switch server.Transport {
		case "native":
			p := pool.New(cfg.Pool, secrets.Resolve(loadedSecrets, secrets.NCBIAPIKey), logger)
			callers[id] = pool.NewLocalCaller(p, logger)
		default: // streamable_http
			timeout := time.Duration(server.TimeoutSeconds) * time.Second
			callers[id] = mcp.New(server.URL, timeout, cfg.Pool.MaxRetries, logger)
		}
	}
	return tools.New(reg, callers, logger), nil
}

// buildLLM constructs the configured provider client, resolving its API key
// from the loaded secrets or the environment.
func buildLLM(cfg types.Config) (llm.Client, error) {
	return llm.New(cfg.LLM, llmAPIKey(cfg.LLM.Provider), logger)
}

// llmAPIKey resolves the API key for a provider name.
func llmAPIKey(provider string) string {
	switch provider {
	case llm.ProviderOpenAI:
		return secrets.Resolve(loadedSecrets, secrets.OpenAIAPIKey)
	default:
		return secrets.Resolve(loadedSecrets, secrets.AnthropicAPIKey)
	}
}

// openCache opens the review cache. An empty cache path disables caching
// and returns a nil store.
func openCache(cfg types.Config) (*cache.Store, error) {
	if cfg.Literature.CachePath == "" {
		return nil, nil
	}
	return cache.Open(cfg.Literature.CachePath, logger)
}

// progressPrinter writes pipeline milestones as human-readable lines.
func progressPrinter(w io.Writer) types.ProgressFunc {
	return func(ctx context.Context, ev types.ProgressEvent) {
		fmt.Fprintf(w, "[%3.0f%%] %s\n", ev.Progress*100, ev.Message)
	}
}
