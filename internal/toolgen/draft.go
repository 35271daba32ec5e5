// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolgen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
)

// draftWorkflow names the registry workflow whose tools the drafting
// agent may call.
const draftWorkflow = "draft_generation"

// noDigestNotice stands in for the literature digest when no review ran.
const noDigestNotice = "No literature review summary is available. Use the search tools to examine papers directly."

// draft is one candidate hypothesis as the drafting agent emits it.
type draft struct {
	Text         string   `json:"text"`
	GapReasoning string   `json:"gap_reasoning"`
	Sources      []string `json:"sources"`
}

// draft asks a tool-enabled agent for n candidate hypotheses in a
// single conversation. The agent may search and read papers through the
// draft_generation workflow tools before committing to its drafts.
func (g *Generator) draft(ctx context.Context, goal, digest, slug, runID string, n int) ([]draft, error) {
	toolIDs := g.runner.Registry().WorkflowTools(draftWorkflow)
	if digest == "" {
		digest = noDigestNotice
	}
	prompt, err := render(draftPromptTmpl, draftPromptData{
		Goal:   goal,
		Digest: digest,
		N:      n,
		Tools:  g.runner.Instructions(toolIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering draft prompt: %w", err)
	}

	exec := g.runner.AgentExec(map[string]any{"slug": slug, "run_id": runID})
	resp, err := g.agent.RunTools(ctx, llm.AgentRequest{
		Prompt:      prompt,
		MaxTokens:   llm.ExtendedMaxTokens,
		Temperature: llm.HighTemperature,
		Tools:       g.runner.AgentTools(toolIDs),
	}, exec)
	if err != nil {
		return nil, fmt.Errorf("draft agent call: %w", err)
	}

	var parsed struct {
		Hypotheses []draft `json:"hypotheses"`
	}
	if err := llm.DecodeJSON(resp, &parsed); err != nil {
		return nil, fmt.Errorf("parsing drafts: %w", err)
	}

	drafts := make([]draft, 0, len(parsed.Hypotheses))
	for _, d := range parsed.Hypotheses {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("draft call produced no hypotheses")
	}
	if len(drafts) > n {
		drafts = drafts[:n]
	}
	if len(drafts) < n {
		g.log.Warn("draft call under-produced",
			zap.Int("requested", n), zap.Int("drafted", len(drafts)))
	}
	return drafts, nil
}
