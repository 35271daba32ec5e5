package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// --- scripted client ---

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
	lastReq   Request
}

func (s *scriptedClient) Complete(_ context.Context, req Request) (string, error) {
	i := s.calls
	s.calls++
	s.lastReq = req
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// --- StripFences ---

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json untouched", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"uppercase fence", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`},
		{"unclosed fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
		{"interior backticks kept", "```json\n{\"a\": \"``\"}\n```", "{\"a\": \"``\"}"},
		{"plain text untouched", "no fences here", "no fences here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// --- DecodeJSON ---

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantKey string
		wantVal any
		wantErr bool
	}{
		{
			name:    "strict json",
			in:      `{"status": "ok"}`,
			wantKey: "status",
			wantVal: "ok",
		},
		{
			name:    "fenced json",
			in:      "```json\n{\"status\": \"ok\"}\n```",
			wantKey: "status",
			wantVal: "ok",
		},
		{
			name:    "trailing comma repaired",
			in:      `{"status": "ok",}`,
			wantKey: "status",
			wantVal: "ok",
		},
		{
			name:    "single quotes repaired",
			in:      `{'status': 'ok'}`,
			wantKey: "status",
			wantVal: "ok",
		},
		{
			name:    "prose is not an object",
			in:      "I could not produce JSON for this request.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]any
			err := DecodeJSON(tt.in, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeJSON(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON(%q): %v", tt.in, err)
			}
			if got := out[tt.wantKey]; got != tt.wantVal {
				t.Errorf("out[%q] = %v, want %v", tt.wantKey, got, tt.wantVal)
			}
		})
	}
}

// --- CompleteJSON ---

func TestCompleteJSON(t *testing.T) {
	client := &scriptedClient{responses: []string{"```json\n{\"queries\": [\"a\", \"b\"]}\n```"}}

	var out struct {
		Queries []string `json:"queries"`
	}
	if err := CompleteJSON(context.Background(), client, Request{Prompt: "p"}, &out); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if len(out.Queries) != 2 || out.Queries[0] != "a" {
		t.Errorf("decoded queries = %v, want [a b]", out.Queries)
	}
	if client.lastReq.Prompt != "p" {
		t.Errorf("request prompt = %q, want %q", client.lastReq.Prompt, "p")
	}
}

// --- withRetry ---

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), 3, zap.NewNop(), func() (string, error) {
		calls++
		if calls <= 2 {
			return "", fmt.Errorf("transient error (call %d)", calls)
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if got != "done" {
		t.Errorf("result = %q, want %q", got, "done")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), 3, zap.NewNop(), func() (string, error) {
		calls++
		return "", errors.New("always fails")
	})
	if err == nil {
		t.Fatal("withRetry succeeded, want error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if want := "after 3 attempts"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not mention %q", err, want)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := withRetry(ctx, 3, zap.NewNop(), func() (string, error) {
		return "", errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// --- New ---

func TestNew(t *testing.T) {
	cfg := types.LLMConfig{Model: "test-model"}

	tests := []struct {
		name     string
		provider string
		key      string
		wantType string
		wantErr  bool
	}{
		{"default is anthropic", "", "k", "*llm.AnthropicClient", false},
		{"anthropic", ProviderAnthropic, "k", "*llm.AnthropicClient", false},
		{"openai", ProviderOpenAI, "k", "*llm.OpenAIClient", false},
		{"unknown provider", "cohere", "k", "", true},
		{"missing key", ProviderAnthropic, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Provider = tt.provider
			client, err := New(cfg, tt.key, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("New succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := fmt.Sprintf("%T", client); got != tt.wantType {
				t.Errorf("client type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

// --- parameter resolution ---

func TestMaxTokens(t *testing.T) {
	tests := []struct {
		req, cfg, want int
	}{
		{0, 0, DefaultMaxTokens},
		{0, 2048, 2048},
		{8000, 2048, 8000},
	}
	for _, tt := range tests {
		if got := maxTokens(tt.req, tt.cfg); got != tt.want {
			t.Errorf("maxTokens(%d, %d) = %d, want %d", tt.req, tt.cfg, got, tt.want)
		}
	}
}

func TestTemperature(t *testing.T) {
	if got := temperature(0, 0); got != nil {
		t.Errorf("temperature(0, 0) = %v, want nil", *got)
	}
	if got := temperature(0, 1.0); got == nil || *got != 1.0 {
		t.Errorf("temperature(0, 1.0) = %v, want 1.0", got)
	}
	if got := temperature(0.2, 1.0); got == nil || *got != 0.2 {
		t.Errorf("temperature(0.2, 1.0) = %v, want 0.2", got)
	}
}

