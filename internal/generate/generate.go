// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate coordinates hypothesis generation across three
// strategies: tool-augmented draft-and-validate, literature-grounded
// debate, and ungrounded debate. The coordinator allocates the budget,
// runs the active strategies concurrently and assembles the results in
// a fixed strategy order.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// ErrMissingGuidance rejects generation without supervisor guidance.
var ErrMissingGuidance = errors.New("supervisor guidance is required for hypothesis generation")

// Progress milestones reported over a generation run.
const (
	progressGenStart    = 0.3
	progressGenComplete = 0.5
)

// DebateGenerator produces hypotheses through simulated scientific
// debate, returning the hypotheses and the debate transcripts.
type DebateGenerator interface {
	Generate(ctx context.Context, goal, digest string, n int, withLit bool) ([]types.Hypothesis, []string, error)
}

// ToolGenerator produces hypotheses through the tool-augmented
// draft-and-validate pipeline.
type ToolGenerator interface {
	Generate(ctx context.Context, goal, digest string, n int) ([]types.Hypothesis, error)
}

// State carries the inputs of one generation run.
type State struct {
	// SupervisorGuidance is the research goal driving generation.
	// Required.
	SupervisorGuidance string

	// Digest is the literature digest from the review phase. Empty when
	// no review ran; equal to types.ReviewFailedSentinel when a review
	// ran and failed.
	Digest string

	// MCPAvailable reports whether the literature tool backend answered
	// its availability probe.
	MCPAvailable bool

	// Progress receives milestone events. Nil discards them.
	Progress types.ProgressFunc
}

// Coordinator fans a hypothesis budget out across generation strategies.
type Coordinator struct {
	cfg    types.GenerationConfig
	tools  ToolGenerator
	debate DebateGenerator
	log    *zap.Logger
}

// New builds a coordinator over the given strategy implementations.
func New(cfg types.GenerationConfig, tools ToolGenerator, debate DebateGenerator, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, tools: tools, debate: debate, log: log}
}

// Generate runs the allocated strategies concurrently and returns their
// hypotheses in fixed order: tool-based, then debate-with-literature,
// then debate-only. Any strategy failure fails the whole call.
func (c *Coordinator) Generate(ctx context.Context, state State) (*types.GenerateResult, error) {
	if strings.TrimSpace(state.SupervisorGuidance) == "" {
		return nil, ErrMissingGuidance
	}

	available := literatureAvailable(state.Digest, state.MCPAvailable)
	counts := Allocate(c.cfg.TotalCount, available, c.cfg.EnableToolCalling, c.cfg.DevIsolation)

	if counts.IsDegradedMode {
		c.log.Warn("DEGRADED MODE: no literature review available, generating from latent knowledge only",
			zap.Bool("mcp_available", state.MCPAvailable),
			zap.Bool("digest_present", state.Digest != ""))
	}
	c.log.Info("generation allocation",
		zap.Int("tools", counts.ToolsCount),
		zap.Int("debate_with_lit", counts.DebateWithLitCount),
		zap.Int("debate_only", counts.DebateOnlyCount),
		zap.Bool("dev_isolation", counts.IsDevIsolation),
		zap.Bool("degraded", counts.IsDegradedMode))

	extra := map[string]any{
		"dev_isolation_mode":          counts.IsDevIsolation,
		"degraded_mode":               counts.IsDegradedMode,
		"literature_review_available": available,
	}
	state.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "generation_start",
		Message:  fmt.Sprintf("Generating %d hypotheses", counts.Total()),
		Progress: progressGenStart,
		Extra:    extra,
	})

	digest := state.Digest
	if !available {
		digest = ""
	}

	var (
		toolHyps    []types.Hypothesis
		litHyps     []types.Hypothesis
		litTrans    []string
		debateHyps  []types.Hypothesis
		debateTrans []string
	)

	g, gctx := errgroup.WithContext(ctx)
	if counts.ToolsCount > 0 {
		g.Go(func() error {
			hyps, err := c.tools.Generate(gctx, state.SupervisorGuidance, digest, counts.ToolsCount)
			if err != nil {
				return fmt.Errorf("tool-based generation: %w", err)
			}
			toolHyps = hyps
			return nil
		})
	}
	if counts.DebateWithLitCount > 0 {
		g.Go(func() error {
			hyps, transcripts, err := c.debate.Generate(gctx, state.SupervisorGuidance, digest, counts.DebateWithLitCount, true)
			if err != nil {
				return fmt.Errorf("debate-with-literature generation: %w", err)
			}
			litHyps, litTrans = hyps, transcripts
			return nil
		})
	}
	if counts.DebateOnlyCount > 0 {
		g.Go(func() error {
			hyps, transcripts, err := c.debate.Generate(gctx, state.SupervisorGuidance, "", counts.DebateOnlyCount, false)
			if err != nil {
				return fmt.Errorf("debate-only generation: %w", err)
			}
			debateHyps, debateTrans = hyps, transcripts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hypotheses := make([]types.Hypothesis, 0, counts.Total())
	hypotheses = append(hypotheses, toolHyps...)
	hypotheses = append(hypotheses, litHyps...)
	hypotheses = append(hypotheses, debateHyps...)

	if counts.IsDegradedMode {
		for i := range hypotheses {
			hypotheses[i].LiteratureGrounding = types.DegradedGroundingDisclaimer
		}
	}

	transcripts := make([]string, 0, len(litTrans)+len(debateTrans))
	transcripts = append(transcripts, litTrans...)
	transcripts = append(transcripts, debateTrans...)

	msg := summaryMessage(len(toolHyps), len(litHyps), len(debateHyps))
	result := &types.GenerateResult{
		Hypotheses:        hypotheses,
		DebateTranscripts: transcripts,
		Count:             len(hypotheses),
		Message:           msg,
	}

	state.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "generation_complete",
		Message:  msg,
		Progress: progressGenComplete,
		Extra:    extra,
	})
	return result, nil
}

// summaryMessage names only the strategies that produced hypotheses.
func summaryMessage(toolN, litN, debateN int) string {
	var parts []string
	if toolN > 0 {
		parts = append(parts, fmt.Sprintf("%d tool-based", toolN))
	}
	if litN > 0 {
		parts = append(parts, fmt.Sprintf("%d debate-with-literature", litN))
	}
	if debateN > 0 {
		parts = append(parts, fmt.Sprintf("%d debate-only", debateN))
	}
	total := toolN + litN + debateN
	if len(parts) == 0 {
		return fmt.Sprintf("Generated %d hypotheses", total)
	}
	return fmt.Sprintf("Generated %d hypotheses (%s)", total, strings.Join(parts, ", "))
}
