// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// OpenAIClient talks to the OpenAI chat-completion API. It supports plain
// completions only; agentic stages require the Anthropic backend.
type OpenAIClient struct {
	client *openai.Client
	cfg    types.LLMConfig
	log    *zap.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAI returns a client for the configured OpenAI model.
func NewOpenAI(apiKey string, cfg types.LLMConfig, log *zap.Logger) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		log:    log,
	}
}

// Complete sends a single-turn request and returns the text response.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	return withRetry(ctx, req.Attempts, c.log, func() (string, error) {
		var messages []openai.ChatCompletionMessage
		if req.System != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})

		creq := openai.ChatCompletionRequest{
			Model:     c.cfg.Model,
			Messages:  messages,
			MaxTokens: maxTokens(req.MaxTokens, c.cfg.MaxTokens),
		}
		if t := temperature(req.Temperature, c.cfg.Temperature); t != nil {
			creq.Temperature = *t
		}

		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty response choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
}
