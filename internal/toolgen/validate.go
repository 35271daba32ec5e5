// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolgen

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// validateWorkflow names the registry workflow whose tools the
// validation agent may call.
const validateWorkflow = "validation"

// validateBatchSize bounds how many drafts one validation agent call
// covers.
const validateBatchSize = 6

// Novelty search parameters. The query is the head of the hypothesis
// text, long enough to carry its key terms and short enough for search
// backends that cap query length.
const (
	noveltyQueryChars = 200
	noveltyMaxPapers  = 5
)

// Validation agent budgets. Token budget grows with the batch, the
// iteration budget with the size of the novelty corpus the agent may
// want to re-check.
const (
	batchTokensPerDraft     = 2500
	batchTokensCap          = 20000
	batchIterationsBase     = 20
	batchIterationsPerPaper = 2
	batchIterationsCap      = 40
)

// noveltyFinding records one draft-against-paper overlap analysis.
type noveltyFinding struct {
	Title      string
	Overlap    string
	Assessment string
}

// noveltyResponse is the model's JSON verdict for one paper comparison.
type noveltyResponse struct {
	Overlap    string `json:"overlap"`
	Assessment string `json:"assessment"`
}

// draftReport pairs a draft with its novelty findings for validation.
type draftReport struct {
	draft    draft
	findings []noveltyFinding
}

// validatedHypothesis is one entry of a validation agent's JSON answer.
// Models emit the statement under either key, so both are accepted.
type validatedHypothesis struct {
	Hypothesis          string `json:"hypothesis"`
	Text                string `json:"text"`
	Explanation         string `json:"explanation"`
	LiteratureGrounding string `json:"literature_grounding"`
	Experiment          string `json:"experiment"`
	NoveltyValidation   string `json:"novelty_validation"`
}

func (v validatedHypothesis) statement() string {
	if strings.TrimSpace(v.Hypothesis) != "" {
		return strings.TrimSpace(v.Hypothesis)
	}
	return strings.TrimSpace(v.Text)
}

// validate checks every draft for novelty against freshly searched
// papers, then refines the drafts in concurrent batched agent calls.
// Novelty failures degrade individual findings; a batch failure fails
// the whole validation.
func (g *Generator) validate(ctx context.Context, goal, slug, runID string, drafts []draft) ([]types.Hypothesis, error) {
	searchTool := g.validationSearchTool()
	if searchTool == "" {
		g.log.Warn("no validation search tool configured, skipping novelty analysis")
	}

	reports := make([]draftReport, len(drafts))
	for i, d := range drafts {
		papers := g.relatedPapers(ctx, searchTool, d.Text, slug, runID)
		reports[i] = draftReport{
			draft:    d,
			findings: g.noveltyFindings(ctx, goal, d, papers),
		}
	}

	batches := batchReports(reports, validateBatchSize)
	results := make([][]types.Hypothesis, len(batches))
	grp, gctx := errgroup.WithContext(ctx)
	for bi, batch := range batches {
		grp.Go(func() error {
			hyps, err := g.validateBatch(gctx, goal, slug, runID, batch)
			if err != nil {
				return fmt.Errorf("validation batch %d: %w", bi+1, err)
			}
			results[bi] = hyps
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var hyps []types.Hypothesis
	for _, r := range results {
		hyps = append(hyps, r...)
	}
	if len(hyps) == 0 {
		return nil, fmt.Errorf("validation produced no hypotheses")
	}
	return hyps, nil
}

// validationSearchTool picks the first enabled search tool of the
// validation workflow.
func (g *Generator) validationSearchTool() string {
	reg := g.runner.Registry()
	w, ok := reg.Workflow(validateWorkflow)
	if !ok {
		return ""
	}
	for _, id := range w.SearchTools {
		if t, ok := reg.Tool(id); ok && t.IsEnabled() {
			return id
		}
	}
	return ""
}

// relatedPapers searches for papers near one draft. Search failures
// degrade to an empty corpus.
func (g *Generator) relatedPapers(ctx context.Context, toolID, text, slug, runID string) []types.Paper {
	if toolID == "" {
		return nil
	}
	query := text
	if len(query) > noveltyQueryChars {
		query = query[:noveltyQueryChars]
	}
	papers, err := g.runner.Papers(ctx, toolID, map[string]any{
		"query":      query,
		"slug":       slug,
		"max_papers": noveltyMaxPapers,
		"run_id":     runID,
	})
	if err != nil {
		g.log.Warn("novelty search failed", zap.Error(err))
		return nil
	}
	return papers
}

// noveltyFindings compares one draft against each fulltext paper
// concurrently. Papers without fulltext and failed comparisons are
// dropped, never the draft.
func (g *Generator) noveltyFindings(ctx context.Context, goal string, d draft, papers []types.Paper) []noveltyFinding {
	var candidates []types.Paper
	for _, p := range papers {
		if p.Fulltext != "" {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	slots := make([]*noveltyFinding, len(candidates))
	var wg sync.WaitGroup
	for i, p := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := render(noveltyPromptTmpl, noveltyPromptData{
				Goal:       goal,
				Hypothesis: d.Text,
				Title:      p.Title,
				Content:    types.TruncateContent(p.Fulltext),
			})
			if err != nil {
				g.log.Warn("rendering novelty prompt", zap.Error(err))
				return
			}
			var resp noveltyResponse
			err = llm.CompleteJSON(ctx, g.agent, llm.Request{
				Prompt:      prompt,
				Temperature: llm.LowTemperature,
			}, &resp)
			if err != nil {
				g.log.Warn("novelty analysis failed",
					zap.String("title", p.Title), zap.Error(err))
				return
			}
			slots[i] = &noveltyFinding{
				Title:      p.Title,
				Overlap:    overlapLevel(resp.Overlap),
				Assessment: strings.TrimSpace(resp.Assessment),
			}
		}()
	}
	wg.Wait()

	var findings []noveltyFinding
	for _, s := range slots {
		if s != nil {
			findings = append(findings, *s)
		}
	}
	return findings
}

// overlapLevel normalizes a model-reported overlap rating.
func overlapLevel(s string) string {
	switch level := strings.ToLower(strings.TrimSpace(s)); level {
	case "high", "medium", "low":
		return level
	default:
		return "unknown"
	}
}

// validateBatch runs one tool-enabled agent call over a batch of
// reports. The agent approves drafts that survived novelty analysis,
// refines those with partial overlap and pivots away from dead ends.
func (g *Generator) validateBatch(ctx context.Context, goal, slug, runID string, batch []draftReport) ([]types.Hypothesis, error) {
	toolIDs := g.runner.Registry().WorkflowTools(validateWorkflow)

	corpus := 0
	blocks := make([]validateDraftBlock, len(batch))
	for i, r := range batch {
		corpus += len(r.findings)
		blocks[i] = validateDraftBlock{
			Index:        i + 1,
			Text:         r.draft.Text,
			GapReasoning: r.draft.GapReasoning,
			Findings:     formatFindings(r.findings),
		}
	}
	prompt, err := render(validatePromptTmpl, validatePromptData{
		Goal:   goal,
		Drafts: blocks,
		Tools:  g.runner.Instructions(toolIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering validation prompt: %w", err)
	}

	exec := g.runner.AgentExec(map[string]any{"slug": slug, "run_id": runID})
	resp, err := g.agent.RunTools(ctx, llm.AgentRequest{
		Prompt:        prompt,
		MaxTokens:     batchTokenBudget(len(batch)),
		Temperature:   llm.LowTemperature,
		Tools:         g.runner.AgentTools(toolIDs),
		MaxIterations: batchIterationBudget(corpus),
	}, exec)
	if err != nil {
		return nil, fmt.Errorf("validation agent call: %w", err)
	}

	var parsed struct {
		Hypotheses []validatedHypothesis `json:"hypotheses"`
	}
	if err := llm.DecodeJSON(resp, &parsed); err != nil {
		return nil, fmt.Errorf("parsing validated hypotheses: %w", err)
	}

	hyps := make([]types.Hypothesis, 0, len(parsed.Hypotheses))
	for i, v := range parsed.Hypotheses {
		text := v.statement()
		if text == "" {
			continue
		}
		novelty := strings.TrimSpace(v.NoveltyValidation)
		if novelty == "" && i < len(batch) {
			novelty = formatFindings(batch[i].findings)
		}
		hyps = append(hyps, types.Hypothesis{
			ID:                  uuid.NewString(),
			Text:                text,
			Explanation:         v.Explanation,
			LiteratureGrounding: v.LiteratureGrounding,
			Experiment:          v.Experiment,
			NoveltyValidation:   novelty,
			EloRating:           types.InitialEloRating,
			GenerationMethod:    types.MethodLiteratureTools,
		})
	}
	if len(hyps) == 0 {
		return nil, fmt.Errorf("no usable hypotheses in response")
	}
	if len(hyps) != len(batch) {
		g.log.Warn("validation batch size mismatch",
			zap.Int("drafts", len(batch)), zap.Int("hypotheses", len(hyps)))
	}
	return hyps, nil
}

// batchReports splits reports into batches of at most size.
func batchReports(reports []draftReport, size int) [][]draftReport {
	var batches [][]draftReport
	for start := 0; start < len(reports); start += size {
		end := start + size
		if end > len(reports) {
			end = len(reports)
		}
		batches = append(batches, reports[start:end])
	}
	return batches
}

// batchTokenBudget sizes the response budget for one validation batch.
func batchTokenBudget(batchSize int) int {
	budget := llm.ExtendedMaxTokens + batchSize*batchTokensPerDraft
	if budget > batchTokensCap {
		budget = batchTokensCap
	}
	return budget
}

// batchIterationBudget sizes the tool-call budget for one validation
// batch from its novelty corpus.
func batchIterationBudget(corpus int) int {
	iterations := batchIterationsBase + batchIterationsPerPaper*corpus
	if iterations > batchIterationsCap {
		iterations = batchIterationsCap
	}
	return iterations
}

// formatFindings renders novelty findings as prompt and record text.
func formatFindings(findings []noveltyFinding) string {
	if len(findings) == 0 {
		return "No overlapping fulltext papers were found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Compared against %d related papers:\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s: %s overlap. %s\n", f.Title, f.Overlap, f.Assessment)
	}
	return strings.TrimRight(b.String(), "\n")
}
