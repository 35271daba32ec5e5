// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolgen generates hypotheses through tool-augmented agent
// conversations: a drafting call proposes candidates while reading
// literature through registry tools, then a validation pass checks each
// draft against freshly searched papers for novelty overlap and lets a
// second agent approve, refine or pivot the drafts in batches.
package toolgen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/generate"
	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/internal/tools"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Generator runs the draft-and-validate pipeline.
type Generator struct {
	agent  llm.ToolAgent
	runner *tools.Runner
	log    *zap.Logger
}

var _ generate.ToolGenerator = (*Generator)(nil)

// New builds a tool-based generator.
func New(agent llm.ToolAgent, runner *tools.Runner, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{agent: agent, runner: runner, log: log}
}

// Generate drafts n hypotheses with a tool-enabled agent and validates
// them against the literature. All phases of one call share a pool
// partition derived from the goal, so validation searches reuse papers
// the drafting agent already fetched.
func (g *Generator) Generate(ctx context.Context, goal, digest string, n int) ([]types.Hypothesis, error) {
	if n < 1 {
		return nil, fmt.Errorf("hypothesis count must be positive, got %d", n)
	}
	slug := types.ResearchSlug(goal)
	runID := uuid.NewString()

	drafts, err := g.draft(ctx, goal, digest, slug, runID, n)
	if err != nil {
		return nil, fmt.Errorf("drafting hypotheses: %w", err)
	}

	hyps, err := g.validate(ctx, goal, slug, runID, drafts)
	if err != nil {
		return nil, fmt.Errorf("validating drafts: %w", err)
	}

	g.log.Info("tool-based generation complete",
		zap.Int("requested", n),
		zap.Int("drafted", len(drafts)),
		zap.Int("validated", len(hyps)))
	return hyps, nil
}
