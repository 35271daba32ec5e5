// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// messagesStub serves canned Anthropic Messages API responses and records
// request bodies.
type messagesStub struct {
	t         *testing.T
	responses []string
	bodies    []map[string]any
}

func (s *messagesStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.t, "/messages", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(s.t, err)
		var body map[string]any
		require.NoError(s.t, json.Unmarshal(raw, &body))
		s.bodies = append(s.bodies, body)

		i := len(s.bodies) - 1
		require.Less(s.t, i, len(s.responses), "unexpected extra API call")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(s.responses[i]))
	})
}

func textResponse(text string) string {
	return `{
		"id": "msg_01", "type": "message", "role": "assistant",
		"content": [{"type": "text", "text": ` + mustJSON(text) + `}],
		"model": "test-model", "stop_reason": "end_turn",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`
}

func toolUseResponse(toolID, name, input string) string {
	return `{
		"id": "msg_02", "type": "message", "role": "assistant",
		"content": [
			{"type": "text", "text": "Let me look that up."},
			{"type": "tool_use", "id": "` + toolID + `", "name": "` + name + `", "input": ` + input + `}
		],
		"model": "test-model", "stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestAnthropic(t *testing.T, stub *messagesStub) *AnthropicClient {
	t.Helper()
	ts := httptest.NewServer(stub.handler())
	t.Cleanup(ts.Close)
	return NewAnthropic("test-key", types.LLMConfig{
		Model:       "test-model",
		BaseURL:     ts.URL,
		MaxTokens:   4096,
		Temperature: 1.0,
	}, zap.NewNop())
}

func TestAnthropicComplete(t *testing.T) {
	stub := &messagesStub{t: t, responses: []string{textResponse("the answer")}}
	client := newTestAnthropic(t, stub)

	got, err := client.Complete(context.Background(), Request{
		System:      "be brief",
		Prompt:      "question",
		Temperature: LowTemperature,
		MaxTokens:   ExtendedMaxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", got)

	require.Len(t, stub.bodies, 1)
	body := stub.bodies[0]
	assert.Equal(t, "test-model", body["model"])
	assert.Equal(t, "be brief", body["system"])
	assert.Equal(t, float64(ExtendedMaxTokens), body["max_tokens"])
	assert.InDelta(t, LowTemperature, body["temperature"], 0.001)
}

func TestAnthropicRunTools(t *testing.T) {
	stub := &messagesStub{t: t, responses: []string{
		toolUseResponse("toolu_01", "search_pubmed", `{"query": "crispr repair", "max_papers": 3}`),
		textResponse(`{"hypotheses": []}`),
	}}
	client := newTestAnthropic(t, stub)

	var calledName string
	var calledArgs map[string]any
	got, err := client.RunTools(context.Background(), AgentRequest{
		Prompt: "generate",
		Tools: []Tool{{
			Name:        "search_pubmed",
			Description: "Search PubMed",
			InputSchema: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {Type: jsonschema.String},
				},
			},
		}},
	}, func(_ context.Context, name string, args map[string]any) (string, error) {
		calledName = name
		calledArgs = args
		return `{"results": []}`, nil
	})
	require.NoError(t, err)

	assert.Equal(t, `{"hypotheses": []}`, got)
	assert.Equal(t, "search_pubmed", calledName)
	assert.Equal(t, "crispr repair", calledArgs["query"])
	assert.Equal(t, float64(3), calledArgs["max_papers"])

	// The second turn must feed the tool result back.
	require.Len(t, stub.bodies, 2)
	second := mustJSON(stub.bodies[1]["messages"])
	assert.Contains(t, second, "tool_result")
	assert.Contains(t, second, "toolu_01")
	// Tool definitions travel on every turn.
	assert.Contains(t, mustJSON(stub.bodies[1]["tools"]), "search_pubmed")
}

func TestAnthropicRunToolsSurfacesToolErrors(t *testing.T) {
	stub := &messagesStub{t: t, responses: []string{
		toolUseResponse("toolu_09", "check_pubmed_available", `{}`),
		textResponse("recovered"),
	}}
	client := newTestAnthropic(t, stub)

	got, err := client.RunTools(context.Background(), AgentRequest{
		Prompt: "go",
		Tools:  []Tool{{Name: "check_pubmed_available", InputSchema: jsonschema.Definition{Type: jsonschema.Object}}},
	}, func(_ context.Context, _ string, _ map[string]any) (string, error) {
		return "", assert.AnError
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)

	require.Len(t, stub.bodies, 2)
	second := mustJSON(stub.bodies[1]["messages"])
	assert.Contains(t, second, `"is_error":true`)
}

func TestAnthropicRunToolsIterationBudget(t *testing.T) {
	// Every turn asks for another tool call; the budget cuts it off.
	stub := &messagesStub{t: t, responses: []string{
		toolUseResponse("toolu_a", "search_pubmed", `{"query": "a"}`),
		toolUseResponse("toolu_b", "search_pubmed", `{"query": "b"}`),
	}}
	client := newTestAnthropic(t, stub)

	calls := 0
	got, err := client.RunTools(context.Background(), AgentRequest{
		Prompt:        "go",
		MaxIterations: 2,
		Tools:         []Tool{{Name: "search_pubmed", InputSchema: jsonschema.Definition{Type: jsonschema.Object}}},
	}, func(_ context.Context, _ string, _ map[string]any) (string, error) {
		calls++
		return "{}", nil
	})
	require.NoError(t, err)

	// The interleaved text block is the best available answer.
	assert.Equal(t, "Let me look that up.", got)
	assert.Equal(t, 2, calls)
	assert.Len(t, stub.bodies, 2)
}
