// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the language-model backends behind a minimal
// completion interface. Anthropic additionally supports native tool use,
// which the agentic generation stages require.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Token ceilings and temperatures used across pipeline stages.
const (
	DefaultMaxTokens  = 4096
	ExtendedMaxTokens = 8000
	ThinkingMaxTokens = 18000

	LowTemperature  = 0.2
	HighTemperature = 1.0
)

// Request describes one completion call.
type Request struct {
	// System is the optional system prompt.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens caps the response length. Zero uses the configured
	// default.
	MaxTokens int

	// Temperature overrides the configured default when positive.
	Temperature float64

	// Attempts bounds retries on provider failures. Zero uses the
	// default (3).
	Attempts int
}

// Client is the text-completion interface implemented by each provider
// backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Tool is a callable capability advertised to the model during agentic
// generation.
type Tool struct {
	Name        string
	Description string
	InputSchema jsonschema.Definition
}

// ToolFunc executes one tool invocation and returns its textual result.
// A non-nil error is reported to the model as a failed tool call rather
// than aborting the conversation.
type ToolFunc func(ctx context.Context, name string, args map[string]any) (string, error)

// AgentRequest describes a multi-turn tool-use conversation.
type AgentRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Tools       []Tool

	// MaxIterations bounds assistant turns. Zero uses
	// DefaultAgentIterations.
	MaxIterations int
}

// ToolAgent is implemented by providers with native tool use.
type ToolAgent interface {
	Client
	RunTools(ctx context.Context, req AgentRequest, call ToolFunc) (string, error)
}

// New builds the configured provider client. The caller resolves the API
// key for the selected provider.
func New(cfg types.LLMConfig, apiKey string, log *zap.Logger) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", providerName(cfg.Provider))
	}
	switch providerName(cfg.Provider) {
	case ProviderAnthropic:
		return NewAnthropic(apiKey, cfg, log), nil
	case ProviderOpenAI:
		return NewOpenAI(apiKey, cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func providerName(p string) string {
	if p == "" {
		return ProviderAnthropic
	}
	return p
}

// CompleteJSON runs the request and decodes the response as JSON.
func CompleteJSON(ctx context.Context, c Client, req Request, out any) error {
	raw, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(raw, out)
}

// DecodeJSON parses a model response as JSON. Markdown fences are
// stripped first; responses that fail strict parsing go through repair
// before giving up.
func DecodeJSON(raw string, out any) error {
	text := StripFences(raw)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("unparseable JSON response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("parsing repaired JSON response: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence from a model
// response. An unclosed fence is tolerated.
func StripFences(s string) string {
	text := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(strings.ToLower(text), "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	default:
		return text
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// backoffBase controls the base duration for exponential backoff between
// attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

const defaultAttempts = 3

// withRetry invokes fn with exponential backoff until it succeeds or the
// attempt budget runs out.
func withRetry(ctx context.Context, attempts int, log *zap.Logger, fn func() (string, error)) (string, error) {
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := fn()
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn("completion attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}
	return "", fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// maxTokens resolves the per-request cap against the configured default.
func maxTokens(reqTokens, cfgTokens int) int {
	if reqTokens > 0 {
		return reqTokens
	}
	if cfgTokens > 0 {
		return cfgTokens
	}
	return DefaultMaxTokens
}

// temperature resolves the per-request temperature. Nil means the
// provider default applies.
func temperature(reqTemp, cfgTemp float64) *float32 {
	t := cfgTemp
	if reqTemp > 0 {
		t = reqTemp
	}
	if t <= 0 {
		return nil
	}
	f := float32(t)
	return &f
}
