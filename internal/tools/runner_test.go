// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/mcp"
	"github.com/pdiddy/hypothesis-engine/internal/registry"
)

type toolCall struct {
	name string
	args map[string]any
}

// fakeCaller records tool calls and plays back scripted results.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []toolCall
	results map[string]string
	errs    map[string]error
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolCall{name: name, args: args})
	f.mu.Unlock()
	if err := f.errs[name]; err != nil {
		return "", err
	}
	out, ok := f.results[name]
	if !ok {
		return "", fmt.Errorf("no scripted result for %s", name)
	}
	return out, nil
}

func (f *fakeCaller) ListTools(ctx context.Context) ([]mcp.ToolSchema, error) { return nil, nil }

func (f *fakeCaller) CheckAvailable(ctx context.Context) bool { return true }

func (f *fakeCaller) lastCall(t *testing.T) toolCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func newTestRunner(t *testing.T, fake *fakeCaller, disabled ...string) *Runner {
	t.Helper()
	reg, err := registry.Load(registry.Options{
		SkipUserConfig: true,
		DisabledTools:  disabled,
		Log:            zap.NewNop(),
	})
	require.NoError(t, err)
	return New(reg, map[string]mcp.Caller{"default": fake}, zap.NewNop())
}

func TestCallAppliesDefaultsAndMapping(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{"search_pubmed": `{"results": [], "count": 0}`}}
	runner := newTestRunner(t, fake)

	_, err := runner.Call(context.Background(), "search_pubmed", map[string]any{
		"query":         "crispr repair",
		"slug":          "research_ab12cd34",
		"recency_years": 5,
		"run_id":        "run-1",
	})
	require.NoError(t, err)

	call := fake.lastCall(t)
	assert.Equal(t, "search_pubmed", call.name)
	assert.Equal(t, "crispr repair", call.args["query"])
	// The declared default fills max_papers; the mapping drops the
	// pool-only parameters.
	assert.Equal(t, 10, call.args["max_papers"])
	assert.NotContains(t, call.args, "slug")
	assert.NotContains(t, call.args, "recency_years")
	assert.NotContains(t, call.args, "run_id")
}

func TestCallEnforcesRequiredParameters(t *testing.T) {
	fake := &fakeCaller{}
	runner := newTestRunner(t, fake)

	_, err := runner.Call(context.Background(), "search_pubmed", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"query"`)
	assert.Empty(t, fake.calls)
}

func TestCallDropsNilValues(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{"pubmed_search_with_fulltext": `{}`}}
	runner := newTestRunner(t, fake)

	_, err := runner.Call(context.Background(), "pubmed_search_with_fulltext", map[string]any{
		"query":  "q",
		"slug":   "s",
		"run_id": nil,
	})
	require.NoError(t, err)
	assert.NotContains(t, fake.lastCall(t).args, "run_id")
}

func TestCallRejectsUnknownAndDisabledTools(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{"search_pubmed": `{}`}}

	runner := newTestRunner(t, fake)
	_, err := runner.Call(context.Background(), "nonexistent_tool", nil)
	assert.Error(t, err)

	runner = newTestRunner(t, fake, "search_pubmed")
	_, err = runner.Call(context.Background(), "search_pubmed", map[string]any{"query": "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestCallWithoutTransport(t *testing.T) {
	reg, err := registry.Load(registry.Options{SkipUserConfig: true, Log: zap.NewNop()})
	require.NoError(t, err)
	runner := New(reg, nil, zap.NewNop())

	_, err = runner.Call(context.Background(), "search_pubmed", map[string]any{"query": "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transport")
}

func TestPapersNormalizesDictResponse(t *testing.T) {
	raw := `{
		"38012345": {
			"title": "Transposon dynamics",
			"abstract": "Elements move.",
			"authors": ["Marie Curie"],
			"publication": "Nature",
			"date_revised": "2024/02/01",
			"pmc_full_text_id": "901",
			"fulltext": "# abstract\n\nElements move."
		}
	}`
	fake := &fakeCaller{results: map[string]string{"pubmed_search_with_fulltext": raw}}
	runner := newTestRunner(t, fake)

	papers, err := runner.Papers(context.Background(), "pubmed_search_with_fulltext", map[string]any{
		"query": "transposons",
		"slug":  "research_ab12cd34",
	})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	p := papers[0]
	assert.Equal(t, "38012345", p.ID)
	assert.Equal(t, "Transposon dynamics", p.Title)
	assert.Equal(t, "Nature", p.Venue)
	assert.Equal(t, "pubmed", p.Source)
	assert.Equal(t, "901", p.PMCID)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/38012345/", p.URL)
}

func TestSourceAvailable(t *testing.T) {
	t.Run("probe true", func(t *testing.T) {
		fake := &fakeCaller{results: map[string]string{"check_pubmed_available": "true"}}
		runner := newTestRunner(t, fake)
		assert.True(t, runner.SourceAvailable(context.Background(), "literature_review"))
	})

	t.Run("probe false", func(t *testing.T) {
		fake := &fakeCaller{results: map[string]string{"check_pubmed_available": "false"}}
		runner := newTestRunner(t, fake)
		assert.False(t, runner.SourceAvailable(context.Background(), "literature_review"))
	})

	t.Run("probe error means unavailable", func(t *testing.T) {
		fake := &fakeCaller{errs: map[string]error{"check_pubmed_available": assert.AnError}}
		runner := newTestRunner(t, fake)
		assert.False(t, runner.SourceAvailable(context.Background(), "literature_review"))
	})

	t.Run("no probe configured means available", func(t *testing.T) {
		fake := &fakeCaller{}
		runner := newTestRunner(t, fake)
		assert.True(t, runner.SourceAvailable(context.Background(), "validation"))
		assert.Empty(t, fake.calls)
	})
}

func TestAgentTools(t *testing.T) {
	runner := newTestRunner(t, &fakeCaller{})

	defs := runner.AgentTools([]string{"pubmed_search_with_fulltext", "nonexistent_tool"})
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "pubmed_search_with_fulltext", def.Name)
	assert.NotEmpty(t, def.Description)
	assert.Equal(t, []string{"query", "slug"}, def.InputSchema.Required)
	assert.Contains(t, def.InputSchema.Properties, "max_papers")
}

func TestAgentExecOverlaysFixedParameters(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{"pubmed_search_with_fulltext": `{}`}}
	runner := newTestRunner(t, fake)

	exec := runner.AgentExec(map[string]any{"slug": "fixed-slug", "run_id": "run-1"})
	_, err := exec(context.Background(), "pubmed_search_with_fulltext", map[string]any{
		"query":      "q",
		"slug":       "agent-slug",
		"max_papers": 3,
	})
	require.NoError(t, err)

	call := fake.lastCall(t)
	assert.Equal(t, "fixed-slug", call.args["slug"])
	assert.Equal(t, "run-1", call.args["run_id"])
	assert.Equal(t, "q", call.args["query"])
	assert.Equal(t, 3, call.args["max_papers"])

	_, err = exec(context.Background(), "unknown_remote_tool", nil)
	assert.Error(t, err)
}

func TestInstructions(t *testing.T) {
	runner := newTestRunner(t, &fakeCaller{})

	text := runner.Instructions([]string{"pubmed_search_with_fulltext", "search_pubmed"})
	assert.Contains(t, text, "- `pubmed_search_with_fulltext`:")
	assert.Contains(t, text, "- `search_pubmed`:")
	// Prompt snippets are indented beneath their tool line.
	assert.Contains(t, text, "  Use PubMed boolean syntax")
}
