// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review scores generated hypotheses against fixed criteria and
// reflects the literature digest back onto them. Small slates are scored
// in one comparative call so the reviewer ranks candidates against each
// other; larger slates fan out to parallel individual reviews.
package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// batchReviewLimit is the largest slate reviewed in one comparative call.
const batchReviewLimit = 5

// invalidReviewSummary marks a review slot the model failed to fill.
const invalidReviewSummary = "Review unavailable"

// Comparative-call budgets. The token budget grows with every
// hypothesis past the batch limit; large slates get extra retry
// attempts because long structured responses fail parsing more often.
const (
	reviewTokensPerExtra   = 1500
	reviewTokensCap        = 24000
	defaultReviewAttempts  = 5
	extendedReviewAttempts = 7
	largeReviewCount       = 10
)

// Progress milestones reported by review and reflection.
const (
	progressReviewStart        = 0.6
	progressReviewComplete     = 0.8
	progressReflectionComplete = 0.9
)

// State carries one review pass's inputs.
type State struct {
	// Goal is the research goal the hypotheses address.
	Goal string

	// Digest is the literature digest. Reflection requires it; scoring
	// works without.
	Digest string

	// Hypotheses is the slate under review. Never mutated; results
	// carry updated copies.
	Hypotheses []types.Hypothesis

	// Progress receives milestone events. Nil discards them.
	Progress types.ProgressFunc
}

// Result carries the updated hypotheses and a summary message.
type Result struct {
	Hypotheses []types.Hypothesis
	Message    string
}

// Reviewer runs review and reflection passes.
type Reviewer struct {
	llm llm.Client
	log *zap.Logger
}

// New builds a reviewer.
func New(client llm.Client, log *zap.Logger) *Reviewer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reviewer{llm: client, log: log}
}

// reviewResponse is the model's JSON review of one hypothesis.
type reviewResponse struct {
	ReviewSummary         string             `json:"review_summary"`
	Scores                map[string]float64 `json:"scores"`
	SafetyEthicalConcerns string             `json:"safety_ethical_concerns"`
	DetailedFeedback      map[string]string  `json:"detailed_feedback"`
	ConstructiveFeedback  string             `json:"constructive_feedback"`
}

// Review scores every hypothesis in the state. Slates of up to five are
// scored in a single comparative call; larger slates run parallel
// individual reviews. Any unusable review fails the operation.
func (r *Reviewer) Review(ctx context.Context, state State) (*Result, error) {
	n := len(state.Hypotheses)
	if n == 0 {
		return &Result{Message: "No hypotheses to review"}, nil
	}

	state.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "review_start",
		Message:  fmt.Sprintf("Reviewing %d hypotheses", n),
		Progress: progressReviewStart,
	})

	hyps := make([]types.Hypothesis, n)
	copy(hyps, state.Hypotheses)

	var strategy string
	var err error
	if n <= batchReviewLimit {
		strategy = "comparative batch"
		err = r.reviewBatch(ctx, state.Goal, hyps)
	} else {
		strategy = "parallel individual"
		err = r.reviewIndividually(ctx, state.Goal, hyps)
	}
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Reviewed %d hypotheses (%s)", n, strategy)
	r.log.Info("review complete",
		zap.Int("hypotheses", n), zap.String("strategy", strategy))
	state.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "review_complete",
		Message:  msg,
		Progress: progressReviewComplete,
	})
	return &Result{Hypotheses: hyps, Message: msg}, nil
}

// reviewBatch scores the whole slate in one comparative call. Review
// slots the model left out or returned empty get the invalid
// placeholder; any placeholder fails the batch.
func (r *Reviewer) reviewBatch(ctx context.Context, goal string, hyps []types.Hypothesis) error {
	blocks := make([]reviewBlock, len(hyps))
	for i, h := range hyps {
		blocks[i] = newReviewBlock(i, h)
	}
	prompt, err := render(batchReviewPromptTmpl, batchReviewPromptData{
		Goal:       goal,
		Hypotheses: blocks,
	})
	if err != nil {
		return fmt.Errorf("rendering review prompt: %w", err)
	}

	var parsed struct {
		Reviews []reviewResponse `json:"reviews"`
	}
	err = llm.CompleteJSON(ctx, r.llm, llm.Request{
		Prompt:      prompt,
		MaxTokens:   reviewTokenBudget(len(hyps)),
		Temperature: llm.LowTemperature,
		Attempts:    reviewAttempts(len(hyps)),
	}, &parsed)
	if err != nil {
		return fmt.Errorf("comparative review call: %w", err)
	}

	invalid := 0
	for i := range hyps {
		if i < len(parsed.Reviews) && usable(parsed.Reviews[i]) {
			applyReview(&hyps[i], parsed.Reviews[i])
			continue
		}
		r.log.Warn("review slot unusable", zap.Int("hypothesis", i))
		applyPlaceholder(&hyps[i])
		invalid++
	}
	if invalid > 0 {
		return fmt.Errorf("review failed for %d of %d hypotheses", invalid, len(hyps))
	}
	return nil
}

// reviewIndividually scores each hypothesis in its own concurrent call.
func (r *Reviewer) reviewIndividually(ctx context.Context, goal string, hyps []types.Hypothesis) error {
	attempts := reviewAttempts(len(hyps))
	grp, gctx := errgroup.WithContext(ctx)
	for i := range hyps {
		grp.Go(func() error {
			prompt, err := render(reviewPromptTmpl, reviewPromptData{
				Goal:       goal,
				Hypothesis: newReviewBlock(i, hyps[i]),
			})
			if err != nil {
				return fmt.Errorf("rendering review prompt: %w", err)
			}
			var resp reviewResponse
			err = llm.CompleteJSON(gctx, r.llm, llm.Request{
				Prompt:      prompt,
				MaxTokens:   llm.ExtendedMaxTokens,
				Temperature: llm.LowTemperature,
				Attempts:    attempts,
			}, &resp)
			if err != nil {
				return fmt.Errorf("reviewing hypothesis %d: %w", i+1, err)
			}
			if !usable(resp) {
				applyPlaceholder(&hyps[i])
				return fmt.Errorf("empty review for hypothesis %d", i+1)
			}
			applyReview(&hyps[i], resp)
			return nil
		})
	}
	return grp.Wait()
}

// usable reports whether a review carries any substance.
func usable(resp reviewResponse) bool {
	return strings.TrimSpace(resp.ReviewSummary) != "" || len(resp.Scores) > 0
}

// applyReview appends the review and sets the hypothesis score. The
// overall score is always recomputed locally from the per-criterion
// scores; overall values reported by a model are never trusted.
func applyReview(h *types.Hypothesis, resp reviewResponse) {
	rev := types.HypothesisReview{
		ReviewSummary:         strings.TrimSpace(resp.ReviewSummary),
		Scores:                resp.Scores,
		SafetyEthicalConcerns: strings.TrimSpace(resp.SafetyEthicalConcerns),
		DetailedFeedback:      resp.DetailedFeedback,
		ConstructiveFeedback:  strings.TrimSpace(resp.ConstructiveFeedback),
	}
	rev.RecomputeOverall()
	h.Reviews = append(h.Reviews, rev)
	h.Score = rev.OverallScore
}

// applyPlaceholder records an invalid review slot.
func applyPlaceholder(h *types.Hypothesis) {
	h.Reviews = append(h.Reviews, types.HypothesisReview{
		ReviewSummary: invalidReviewSummary,
	})
	h.Score = 0
}

// reviewTokenBudget sizes the comparative call's response budget.
func reviewTokenBudget(n int) int {
	budget := llm.ThinkingMaxTokens
	if n > batchReviewLimit {
		budget += (n - batchReviewLimit) * reviewTokensPerExtra
	}
	if budget > reviewTokensCap {
		budget = reviewTokensCap
	}
	return budget
}

// reviewAttempts picks the retry budget for review calls.
func reviewAttempts(n int) int {
	if n > largeReviewCount {
		return extendedReviewAttempts
	}
	return defaultReviewAttempts
}
