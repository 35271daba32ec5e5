// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package literature runs the literature review pipeline: query
// generation, multi-source paper collection, PDF discovery, content
// fetching, per-paper analysis and cross-paper synthesis. A review that
// cannot produce a usable digest returns a structured failure result
// carrying the sentinel digest; callers degrade rather than abort.
package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/cache"
	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/internal/normalize"
	"github.com/pdiddy/hypothesis-engine/internal/tools"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// workflowName is the registry workflow the review draws its tools from.
const workflowName = "literature_review"

// maxQueries caps the search queries per review regardless of how many
// the generator proposes.
const maxQueries = 3

// Progress milestones reported over the review's lifetime.
const (
	progressStart    = 0.1
	progressComplete = 0.2
)

// Request carries the inputs of one literature review.
type Request struct {
	// Goal is the research goal under review.
	Goal string

	// Guidance is optional operator guidance folded into query
	// generation.
	Guidance string

	// RunID scopes per-run pool views. Generated when empty.
	RunID string

	// Progress receives milestone events. Nil discards them.
	Progress types.ProgressFunc
}

// Orchestrator drives literature reviews end to end.
type Orchestrator struct {
	cfg    types.LiteratureConfig
	llm    llm.Client
	runner *tools.Runner
	cache  *cache.Store
	log    *zap.Logger
}

// New builds a review orchestrator. A nil store disables caching.
func New(cfg types.LiteratureConfig, client llm.Client, runner *tools.Runner, store *cache.Store, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, llm: client, runner: runner, cache: store, log: log}
}

// Review runs a full literature review for the request's goal. Reviews
// that found nothing usable return a failure result with a nil error;
// the error return is reserved for unusable requests.
func (o *Orchestrator) Review(ctx context.Context, req Request) (*types.ReviewResult, error) {
	if strings.TrimSpace(req.Goal) == "" {
		return nil, fmt.Errorf("research goal is required")
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	if o.cache != nil {
		cached, ok, err := o.cache.Get(ctx, req.Goal)
		if err != nil {
			o.log.Warn("review cache lookup failed", zap.Error(err))
		} else if ok {
			o.log.Info("literature review served from cache")
			req.Progress.Emit(ctx, types.ProgressEvent{
				Name:     "literature_review_complete",
				Message:  "Literature review completed (cached)",
				Progress: progressComplete,
				Extra:    map[string]any{"cached": true},
			})
			return cached, nil
		}
	}

	if !o.runner.SourceAvailable(ctx, workflowName) {
		return o.fail(ctx, req, nil, nil, "literature source service unavailable"), nil
	}

	req.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "literature_review_start",
		Message:  "Starting literature review",
		Progress: progressStart,
	})

	queries := o.generateQueries(ctx, req.Goal, req.Guidance)
	slug := types.ResearchSlug(req.Goal)
	o.log.Info("literature search plan",
		zap.Strings("queries", queries),
		zap.String("slug", slug),
		zap.String("run_id", req.RunID))

	papers, bySource := o.collect(ctx, req, queries, slug)
	if len(papers) == 0 {
		return o.fail(ctx, req, queries, nil, "literature review failed: no papers found"), nil
	}

	o.discoverPDFs(ctx, papers, bySource)
	o.fetchContent(ctx, req.Goal, papers, bySource)

	withContent := 0
	for i := range papers {
		if papers[i].FulltextAvailable() {
			withContent++
		}
	}
	if withContent == 0 {
		msg := fmt.Sprintf("literature review failed: %d papers found but none have fulltexts for analysis", len(papers))
		return o.fail(ctx, req, queries, articlesFrom(papers, false), msg), nil
	}

	analyses := o.analyzePapers(ctx, req.Goal, papers)

	// Synthesis failures after successful collection still surface the
	// articles: the papers were analyzed even if no digest came out.
	digest := types.ReviewFailedSentinel
	if len(analyses) == 0 {
		o.log.Error("every paper analysis failed", zap.Int("papers", len(papers)))
	} else if d, err := o.synthesize(ctx, req.Goal, analyses); err != nil {
		o.log.Error("literature synthesis failed", zap.Error(err))
	} else {
		digest = d
	}

	articles := articlesFrom(papers, true)
	msg := fmt.Sprintf("completed literature review with %d queries, %d articles analyzed", len(queries), len(articles))
	result := &types.ReviewResult{
		Digest:   digest,
		Queries:  queries,
		Articles: articles,
		Messages: []string{msg},
	}
	if result.Failed() {
		result.Messages = []string{"ERROR: literature review failed: analysis produced no digest"}
	}

	if o.cache != nil && !result.Failed() {
		if err := o.cache.Put(ctx, req.Goal, *result); err != nil {
			o.log.Warn("storing review result", zap.Error(err))
		}
	}

	o.log.Info("literature review complete",
		zap.Int("queries", len(queries)),
		zap.Int("articles", len(articles)),
		zap.Bool("failed", result.Failed()))
	req.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "literature_review_complete",
		Message:  msg,
		Progress: progressComplete,
	})
	return result, nil
}

// fail builds the sentinel failure result and emits the completion
// event. A failed review is a result, not a Go error: the generation
// coordinator falls back to ungrounded strategies.
func (o *Orchestrator) fail(ctx context.Context, req Request, queries []string, articles []types.Article, msg string) *types.ReviewResult {
	o.log.Warn("literature review failed", zap.String("reason", msg))
	if articles == nil {
		articles = []types.Article{}
	}
	req.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "literature_review_complete",
		Message:  msg,
		Progress: progressComplete,
		Extra:    map[string]any{"error": true},
	})
	return &types.ReviewResult{
		Digest:   types.ReviewFailedSentinel,
		Queries:  queries,
		Articles: articles,
		Messages: []string{"ERROR: " + msg},
	}
}

// generateQueries produces up to maxQueries search queries for the goal.
// A configured remote generation tool is tried first, then the LLM, and
// as a last resort the goal itself is used verbatim.
func (o *Orchestrator) generateQueries(ctx context.Context, goal, guidance string) []string {
	w, ok := o.runner.Registry().Workflow(workflowName)
	if ok && w.QueryGenerationTool != "" {
		raw, err := o.runner.Call(ctx, w.QueryGenerationTool, map[string]any{
			"research_goal": goal,
			"max_queries":   maxQueries,
		})
		if err == nil {
			if qs := capQueries(parseQueries(raw)); len(qs) > 0 {
				return qs
			}
		}
		o.log.Warn("remote query generation failed, falling back to LLM",
			zap.String("tool", w.QueryGenerationTool), zap.Error(err))
	}

	boolean := !ok || w.QueryFormat != "natural_language"
	if guidance == "" {
		guidance = "None provided"
	}
	prompt, err := render(queryPromptTmpl, struct {
		Goal       string
		Guidance   string
		MaxQueries int
		Boolean    bool
	}{Goal: goal, Guidance: guidance, MaxQueries: maxQueries, Boolean: boolean})
	if err == nil {
		var out struct {
			Queries []string `json:"queries"`
		}
		err = llm.CompleteJSON(ctx, o.llm, llm.Request{
			Prompt:      prompt,
			Temperature: llm.LowTemperature,
		}, &out)
		if err == nil {
			if qs := capQueries(out.Queries); len(qs) > 0 {
				return qs
			}
		}
	}
	o.log.Warn("query generation failed, searching with the goal verbatim", zap.Error(err))
	return []string{goal}
}

// parseQueries reads a remote generator response: either a JSON list of
// strings or an object with a queries list.
func parseQueries(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	var obj struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj.Queries
	}
	return nil
}

// capQueries trims, drops empties and enforces the query cap.
func capQueries(qs []string) []string {
	var out []string
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == maxQueries {
			break
		}
	}
	return out
}

func articlesFrom(papers []types.Paper, used bool) []types.Article {
	articles := make([]types.Article, 0, len(papers))
	for _, p := range papers {
		articles = append(articles, normalize.ArticleFromPaper(p, used))
	}
	return articles
}
