// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/cache"
	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/internal/mcp"
	"github.com/pdiddy/hypothesis-engine/internal/registry"
	"github.com/pdiddy/hypothesis-engine/internal/tools"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

type toolCall struct {
	name string
	args map[string]any
}

// fakeCaller plays back scripted tool results keyed by remote name.
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

func (f *fakeCaller) callsFor(name string) []toolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []toolCall
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// scriptedLLM routes completions by prompt markers and records every
// request it saw.
type scriptedLLM struct {
	mu        sync.Mutex
	calls     []llm.Request
	queries   string
	analysis  string
	synthesis string
	errs      map[string]error
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	switch {
	case strings.Contains(req.Prompt, "literature search strategist"):
		if err := s.errs["queries"]; err != nil {
			return "", err
		}
		return s.queries, nil
	case strings.Contains(req.Prompt, "research analyst"):
		if err := s.errs["analysis"]; err != nil {
			return "", err
		}
		return s.analysis, nil
	case strings.Contains(req.Prompt, "literature digest"):
		if err := s.errs["synthesis"]; err != nil {
			return "", err
		}
		return s.synthesis, nil
	}
	return "", fmt.Errorf("unexpected prompt: %.60s", req.Prompt)
}

func (s *scriptedLLM) prompts(marker string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, req := range s.calls {
		if strings.Contains(req.Prompt, marker) {
			out = append(out, req.Prompt)
		}
	}
	return out
}

func defaultLLM() *scriptedLLM {
	return &scriptedLLM{
		queries:   `{"queries": ["\"crispr\" AND \"repair\"", "\"gene editing\" AND \"dna damage\""]}`,
		analysis:  `{"summary": "The paper maps repair pathway choice.", "research_gaps": ["role of chromatin state"], "limitations": ["cell lines only"], "future_directions": ["in vivo validation"]}`,
		synthesis: "Current work converges on pathway choice as the key lever.",
	}
}

func newTestOrchestrator(t *testing.T, overlay string, fake *fakeCaller, client llm.Client, store *cache.Store) *Orchestrator {
	t.Helper()
	opts := registry.Options{SkipUserConfig: true, Log: zap.NewNop()}
	if overlay != "" {
		path := filepath.Join(t.TempDir(), "tools.yaml")
		require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))
		opts.Path = path
	}
	reg, err := registry.Load(opts)
	require.NoError(t, err)
	runner := tools.New(reg, map[string]mcp.Caller{"default": fake}, zap.NewNop())
	cfg := types.LiteratureConfig{MaxPapers: 10, RecencyYears: 5}
	return New(cfg, client, runner, store, zap.NewNop())
}

func progressRecorder(events *[]types.ProgressEvent) types.ProgressFunc {
	var mu sync.Mutex
	return func(ctx context.Context, ev types.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, ev)
	}
}

// searchDict builds a pubmed_search_with_fulltext style response keyed
// by PMID.
func searchDict(papers map[string]map[string]any) string {
	out, err := json.Marshal(papers)
	if err != nil {
		panic(err)
	}
	return string(out)
}

const testGoal = "How do cells choose a repair pathway after CRISPR cuts?"

// --- Review ---

func TestReviewHappyPath(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available": "true",
		"pubmed_search_with_fulltext": searchDict(map[string]map[string]any{
			"38000001": {
				"title":            "Repair pathway choice at Cas9 breaks",
				"abstract":         "We profile end joining outcomes.",
				"authors":          []string{"Marie Curie"},
				"publication":      "Nature",
				"date_revised":     "2023/05/10",
				"pmc_full_text_id": "901",
				"fulltext":         "Full text of paper one.",
			},
			"38000002": {
				"title":        "Chromatin context of double-strand breaks",
				"abstract":     "Chromatin state biases repair.",
				"date_revised": "2024/01/02",
				"fulltext":     "Full text of paper two.",
			},
		}),
	}}
	client := defaultLLM()
	orch := newTestOrchestrator(t, "", fake, client, nil)

	var events []types.ProgressEvent
	result, err := orch.Review(context.Background(), Request{
		Goal:     testGoal,
		RunID:    "run-1",
		Progress: progressRecorder(&events),
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Failed())
	assert.Equal(t, "Current work converges on pathway choice as the key lever.", result.Digest)
	assert.Equal(t, []string{`"crispr" AND "repair"`, `"gene editing" AND "dna damage"`}, result.Queries)
	assert.Equal(t, []string{"completed literature review with 2 queries, 2 articles analyzed"}, result.Messages)

	require.Len(t, result.Articles, 2)
	for _, a := range result.Articles {
		assert.True(t, a.UsedInAnalysis)
		assert.Equal(t, "pubmed", a.Source)
	}

	// Both queries hit the primary tool with the split budget and the
	// goal-derived slug.
	searches := fake.callsFor("pubmed_search_with_fulltext")
	require.Len(t, searches, 2)
	queried := map[string]bool{}
	for _, c := range searches {
		queried[c.args["query"].(string)] = true
		assert.Equal(t, types.ResearchSlug(testGoal), c.args["slug"])
		assert.Equal(t, 5, c.args["max_papers"])
		assert.Equal(t, 5, c.args["recency_years"])
		assert.Equal(t, "run-1", c.args["run_id"])
	}
	assert.True(t, queried[`"crispr" AND "repair"`])
	assert.True(t, queried[`"gene editing" AND "dna damage"`])

	require.Len(t, fake.callsFor("check_pubmed_available"), 1)

	require.Len(t, events, 2)
	assert.Equal(t, "literature_review_start", events[0].Name)
	assert.InDelta(t, 0.1, events[0].Progress, 1e-9)
	assert.Equal(t, "literature_review_complete", events[1].Name)
	assert.InDelta(t, 0.2, events[1].Progress, 1e-9)
	assert.NotContains(t, events[1].Extra, "error")
}

func TestReviewRequiresGoal(t *testing.T) {
	orch := newTestOrchestrator(t, "", &fakeCaller{}, defaultLLM(), nil)
	_, err := orch.Review(context.Background(), Request{Goal: "   "})
	require.Error(t, err)
}

func TestReviewSourceUnavailable(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{"check_pubmed_available": "false"}}
	orch := newTestOrchestrator(t, "", fake, defaultLLM(), nil)

	var events []types.ProgressEvent
	result, err := orch.Review(context.Background(), Request{
		Goal:     testGoal,
		Progress: progressRecorder(&events),
	})
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, []string{"ERROR: literature source service unavailable"}, result.Messages)
	assert.NotNil(t, result.Articles)
	assert.Empty(t, result.Articles)

	// The probe is the only tool touched and no start event fires.
	assert.Len(t, fake.calls, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "literature_review_complete", events[0].Name)
	assert.Equal(t, true, events[0].Extra["error"])
}

func TestReviewNoPapersFound(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available":      "true",
		"pubmed_search_with_fulltext": "{}",
	}}
	client := defaultLLM()
	orch := newTestOrchestrator(t, "", fake, client, nil)

	result, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, []string{"ERROR: literature review failed: no papers found"}, result.Messages)
	assert.Equal(t, []string{`"crispr" AND "repair"`, `"gene editing" AND "dna damage"`}, result.Queries)
	assert.Empty(t, result.Articles)
}

func TestReviewNoFulltextsKeepsArticlesUnused(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available": "true",
		"pubmed_search_with_fulltext": searchDict(map[string]map[string]any{
			"38000001": {"title": "Metadata only one", "abstract": "A."},
			"38000002": {"title": "Metadata only two", "abstract": "B."},
		}),
	}}
	client := defaultLLM()
	orch := newTestOrchestrator(t, "", fake, client, nil)

	result, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t,
		[]string{"ERROR: literature review failed: 2 papers found but none have fulltexts for analysis"},
		result.Messages)
	require.Len(t, result.Articles, 2)
	for _, a := range result.Articles {
		assert.False(t, a.UsedInAnalysis)
	}

	// Only query generation reached the model.
	assert.Len(t, client.calls, 1)
}

func TestReviewSynthesisFailureKeepsArticlesUsed(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available": "true",
		"pubmed_search_with_fulltext": searchDict(map[string]map[string]any{
			"38000001": {"title": "Paper one", "fulltext": "Text one."},
		}),
	}}
	client := defaultLLM()
	client.errs = map[string]error{"synthesis": fmt.Errorf("model refused")}

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	orch := newTestOrchestrator(t, "", fake, client, store)
	result, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, types.ReviewFailedSentinel, result.Digest)
	require.Len(t, result.Articles, 1)
	assert.True(t, result.Articles[0].UsedInAnalysis)
	require.NotEmpty(t, result.Messages)
	assert.True(t, strings.HasPrefix(result.Messages[0], "ERROR: "))

	// Failed reviews are never cached.
	_, ok, err := store.Get(context.Background(), testGoal)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReviewAllAnalysesFailed(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available": "true",
		"pubmed_search_with_fulltext": searchDict(map[string]map[string]any{
			"38000001": {"title": "Paper one", "fulltext": "Text one."},
		}),
	}}
	client := defaultLLM()
	client.errs = map[string]error{"analysis": fmt.Errorf("overloaded")}
	orch := newTestOrchestrator(t, "", fake, client, nil)

	result, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)

	assert.True(t, result.Failed())
	require.Len(t, result.Articles, 1)
	assert.True(t, result.Articles[0].UsedInAnalysis)

	// Synthesis is never attempted without analyses.
	assert.Empty(t, client.prompts("literature digest"))
}

func TestReviewServedFromCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := cache.Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available": "true",
		"pubmed_search_with_fulltext": searchDict(map[string]map[string]any{
			"38000001": {"title": "Paper one", "fulltext": "Text one."},
		}),
	}}
	orch := newTestOrchestrator(t, "", fake, defaultLLM(), store)
	first, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)
	require.False(t, first.Failed())

	// A fresh orchestrator over the same store answers without touching
	// tools or the model.
	idle := &fakeCaller{}
	second := newTestOrchestrator(t, "", idle, &scriptedLLM{}, store)

	var events []types.ProgressEvent
	result, err := second.Review(context.Background(), Request{
		Goal:     testGoal,
		Progress: progressRecorder(&events),
	})
	require.NoError(t, err)

	assert.Equal(t, first.Digest, result.Digest)
	assert.Empty(t, idle.calls)
	require.Len(t, events, 1)
	assert.Equal(t, "literature_review_complete", events[0].Name)
	assert.Equal(t, "Literature review completed (cached)", events[0].Message)
	assert.Equal(t, true, events[0].Extra["cached"])
}

// --- query generation ---

func TestGenerateQueriesRemoteTool(t *testing.T) {
	overlay := `
tools:
  utility:
    generate_queries:
      server: default
      applies_to: literature_review
workflows:
  literature_review:
    query_generation_tool: generate_queries
`
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available":      "true",
		"generate_queries":            `{"queries": ["alpha", "beta", "gamma", "delta"]}`,
		"pubmed_search_with_fulltext": "{}",
	}}
	client := defaultLLM()
	orch := newTestOrchestrator(t, overlay, fake, client, nil)

	result, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)

	// The remote tool wins, capped at three queries; the model is never
	// asked.
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, result.Queries)
	assert.Empty(t, client.prompts("literature search strategist"))

	calls := fake.callsFor("generate_queries")
	require.Len(t, calls, 1)
	assert.Equal(t, testGoal, calls[0].args["research_goal"])
	assert.Equal(t, 3, calls[0].args["max_queries"])
}

func TestGenerateQueriesFallsBackToGoal(t *testing.T) {
	fake := &fakeCaller{results: map[string]string{
		"check_pubmed_available":      "true",
		"pubmed_search_with_fulltext": "{}",
	}}
	client := defaultLLM()
	client.errs = map[string]error{"queries": fmt.Errorf("overloaded")}
	orch := newTestOrchestrator(t, "", fake, client, nil)

	result, err := orch.Review(context.Background(), Request{Goal: testGoal})
	require.NoError(t, err)
	assert.Equal(t, []string{testGoal}, result.Queries)
}

func TestParseQueries(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseQueries(`["a", "b"]`))
	assert.Equal(t, []string{"a"}, parseQueries(`{"queries": ["a"]}`))
	assert.Nil(t, parseQueries(`not json`))
	assert.Nil(t, parseQueries(`{"other": 1}`))
}

func TestCapQueries(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, capQueries([]string{" a ", "", "b", "c", "d"}))
	assert.Nil(t, capQueries([]string{"", "  "}))
}

func TestResearchSlug(t *testing.T) {
	s := types.ResearchSlug(testGoal)
	assert.True(t, strings.HasPrefix(s, "research_"))
	assert.Len(t, s, len("research_")+8)
	assert.Equal(t, s, types.ResearchSlug(testGoal))
	assert.NotEqual(t, s, types.ResearchSlug("a different goal"))
}
