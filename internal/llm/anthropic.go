// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// DefaultAgentIterations bounds tool-use conversations that do not carry
// their own budget.
const DefaultAgentIterations = 8

// AnthropicClient talks to the Anthropic Messages API. It implements
// both Client and ToolAgent.
type AnthropicClient struct {
	client *anthropic.Client
	cfg    types.LLMConfig
	log    *zap.Logger
}

var _ ToolAgent = (*AnthropicClient)(nil)

// NewAnthropic returns a client for the configured Anthropic model.
func NewAnthropic(apiKey string, cfg types.LLMConfig, log *zap.Logger) *AnthropicClient {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey, opts...),
		cfg:    cfg,
		log:    log,
	}
}

// Complete sends a single-turn request and returns the text response.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	return withRetry(ctx, req.Attempts, c.log, func() (string, error) {
		mreq := anthropic.MessagesRequest{
			Model:     anthropic.Model(c.cfg.Model),
			System:    req.System,
			Messages:  []anthropic.Message{anthropic.NewUserTextMessage(req.Prompt)},
			MaxTokens: maxTokens(req.MaxTokens, c.cfg.MaxTokens),
		}
		mreq.Temperature = temperature(req.Temperature, c.cfg.Temperature)

		resp, err := c.client.CreateMessages(ctx, mreq)
		if err != nil {
			return "", err
		}
		return firstText(resp.Content)
	})
}

// RunTools drives a tool-use conversation until the model stops calling
// tools or the iteration budget runs out. Tool errors are surfaced to the
// model as failed tool results so it can adjust course.
func (c *AnthropicClient) RunTools(ctx context.Context, req AgentRequest, call ToolFunc) (string, error) {
	iterations := req.MaxIterations
	if iterations <= 0 {
		iterations = DefaultAgentIterations
	}

	defs := make([]anthropic.ToolDefinition, len(req.Tools))
	for i, t := range req.Tools {
		defs[i] = anthropic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
	}

	messages := []anthropic.Message{anthropic.NewUserTextMessage(req.Prompt)}
	lastText := ""

	for iter := 0; iter < iterations; iter++ {
		mreq := anthropic.MessagesRequest{
			Model:     anthropic.Model(c.cfg.Model),
			System:    req.System,
			Messages:  messages,
			MaxTokens: maxTokens(req.MaxTokens, c.cfg.MaxTokens),
			Tools:     defs,
		}
		mreq.Temperature = temperature(req.Temperature, c.cfg.Temperature)

		resp, err := c.client.CreateMessages(ctx, mreq)
		if err != nil {
			return "", fmt.Errorf("tool conversation turn %d: %w", iter+1, err)
		}

		if text, err := firstText(resp.Content); err == nil {
			lastText = text
		}

		if resp.StopReason != anthropic.MessagesStopReasonToolUse {
			return lastText, nil
		}

		messages = append(messages, anthropic.Message{
			Role:    anthropic.RoleAssistant,
			Content: resp.Content,
		})

		var results []anthropic.MessageContent
		for _, block := range resp.Content {
			if block.Type != anthropic.MessagesContentTypeToolUse || block.MessageContentToolUse == nil {
				continue
			}
			use := block.MessageContentToolUse

			args := map[string]any{}
			if len(use.Input) > 0 {
				if err := json.Unmarshal(use.Input, &args); err != nil {
					c.log.Warn("unparseable tool input",
						zap.String("tool", use.Name),
						zap.Error(err))
				}
			}

			c.log.Debug("tool call",
				zap.String("tool", use.Name),
				zap.Int("turn", iter+1))

			out, callErr := call(ctx, use.Name, args)
			isErr := false
			if callErr != nil {
				out = callErr.Error()
				isErr = true
				c.log.Warn("tool call failed",
					zap.String("tool", use.Name),
					zap.Error(callErr))
			}
			results = append(results, anthropic.NewToolResultMessageContent(use.ID, out, isErr))
		}

		// A tool_use stop with no parseable tool blocks cannot progress.
		if len(results) == 0 {
			return lastText, nil
		}
		messages = append(messages, anthropic.Message{
			Role:    anthropic.RoleUser,
			Content: results,
		})
	}

	if lastText == "" {
		return "", fmt.Errorf("tool conversation exhausted %d turns without a text response", iterations)
	}
	return lastText, nil
}

// firstText returns the first non-empty text block of a response.
func firstText(content []anthropic.MessageContent) (string, error) {
	for _, block := range content {
		if block.Text != nil && *block.Text != "" {
			return *block.Text, nil
		}
	}
	return "", errors.New("empty response content")
}
