// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// scriptedLLM routes completions by prompt markers and records every
// request it saw. Individual and reflection responses can additionally
// be routed by a substring of the hypothesis under review.
type scriptedLLM struct {
	mu    sync.Mutex
	calls []llm.Request

	batch    string
	batchErr error

	individual          map[string]string
	individualDefault   string
	individualErrMarker string

	reflect          map[string]string
	reflectDefault   string
	reflectErrMarker string
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	switch {
	case strings.Contains(req.Prompt, "side by side"):
		if s.batchErr != nil {
			return "", s.batchErr
		}
		return s.batch, nil
	case strings.Contains(req.Prompt, "scoring one candidate hypothesis"):
		if s.individualErrMarker != "" && strings.Contains(req.Prompt, s.individualErrMarker) {
			return "", fmt.Errorf("model overloaded")
		}
		for marker, resp := range s.individual {
			if strings.Contains(req.Prompt, marker) {
				return resp, nil
			}
		}
		return s.individualDefault, nil
	case strings.Contains(req.Prompt, "against a literature digest"):
		if s.reflectErrMarker != "" && strings.Contains(req.Prompt, s.reflectErrMarker) {
			return "", fmt.Errorf("model overloaded")
		}
		for marker, resp := range s.reflect {
			if strings.Contains(req.Prompt, marker) {
				return resp, nil
			}
		}
		return s.reflectDefault, nil
	}
	return "", fmt.Errorf("unexpected prompt: %.60s", req.Prompt)
}

func (s *scriptedLLM) reqsFor(marker string) []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []llm.Request
	for _, req := range s.calls {
		if strings.Contains(req.Prompt, marker) {
			out = append(out, req)
		}
	}
	return out
}

func progressRecorder(events *[]types.ProgressEvent) types.ProgressFunc {
	var mu sync.Mutex
	return func(ctx context.Context, ev types.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, ev)
	}
}

func reviewJSON(summary string, novelty, plausibility float64) string {
	return fmt.Sprintf(`{"review_summary": %q, "scores": {"novelty": %g, "plausibility": %g}, "safety_ethical_concerns": "", "detailed_feedback": {"novelty": "fine"}, "constructive_feedback": "tighten the claim"}`,
		summary, novelty, plausibility)
}

func batchJSON(reviews ...string) string {
	return fmt.Sprintf(`{"reviews": [%s]}`, strings.Join(reviews, ", "))
}

func slate(texts ...string) []types.Hypothesis {
	hyps := make([]types.Hypothesis, len(texts))
	for i, text := range texts {
		hyps[i] = types.Hypothesis{
			ID:               fmt.Sprintf("hyp-%d", i+1),
			Text:             text,
			EloRating:        types.InitialEloRating,
			GenerationMethod: types.MethodDebateWithLit,
		}
	}
	return hyps
}

const testGoal = "Which signals commit a fibroblast to senescence?"

// --- Review ---

func TestReviewBatchHappyPath(t *testing.T) {
	client := &scriptedLLM{batch: batchJSON(
		reviewJSON("Strong mechanistic claim.", 8, 6),
		reviewJSON("Plausible but derivative.", 4, 6),
		reviewJSON("Bold and testable.", 9, 7),
	)}
	r := New(client, nil)

	hyps := slate("Alpha pathway claim", "Beta pathway claim", "Gamma pathway claim")
	hyps[0].Explanation = "Mechanism via p16 accumulation."
	var events []types.ProgressEvent

	res, err := r.Review(context.Background(), State{
		Goal:       testGoal,
		Hypotheses: hyps,
		Progress:   progressRecorder(&events),
	})
	require.NoError(t, err)
	require.Len(t, res.Hypotheses, 3)
	assert.Equal(t, "Reviewed 3 hypotheses (comparative batch)", res.Message)

	for i, h := range res.Hypotheses {
		require.Len(t, h.Reviews, 1, "hypothesis %d", i)
	}
	assert.Equal(t, "Strong mechanistic claim.", res.Hypotheses[0].Reviews[0].ReviewSummary)
	assert.InDelta(t, 7.0, res.Hypotheses[0].Score, 1e-9)
	assert.InDelta(t, 5.0, res.Hypotheses[1].Score, 1e-9)
	assert.InDelta(t, 8.0, res.Hypotheses[2].Score, 1e-9)
	assert.Equal(t, "tighten the claim", res.Hypotheses[0].Reviews[0].ConstructiveFeedback)

	// One comparative call with the batch budgets.
	require.Len(t, client.calls, 1)
	req := client.calls[0]
	assert.Equal(t, llm.ThinkingMaxTokens, req.MaxTokens)
	assert.Equal(t, llm.LowTemperature, req.Temperature)
	assert.Equal(t, defaultReviewAttempts, req.Attempts)
	assert.Contains(t, req.Prompt, testGoal)
	assert.Contains(t, req.Prompt, "**Hypothesis 0:**")
	assert.Contains(t, req.Prompt, "**Hypothesis 2:**")
	assert.Contains(t, req.Prompt, "Mechanism via p16 accumulation.")

	// The input slate is never mutated.
	assert.Nil(t, hyps[0].Reviews)
	assert.Zero(t, hyps[0].Score)

	require.Len(t, events, 2)
	assert.Equal(t, "review_start", events[0].Name)
	assert.Equal(t, "Reviewing 3 hypotheses", events[0].Message)
	assert.InDelta(t, 0.6, events[0].Progress, 1e-9)
	assert.Equal(t, "review_complete", events[1].Name)
	assert.Equal(t, res.Message, events[1].Message)
	assert.InDelta(t, 0.8, events[1].Progress, 1e-9)
}

func TestReviewIgnoresModelOverallScore(t *testing.T) {
	client := &scriptedLLM{batch: batchJSON(
		`{"review_summary": "Middling.", "scores": {"novelty": 4, "impact": 6}, "overall_score": 9.9}`,
	)}
	r := New(client, nil)

	res, err := r.Review(context.Background(), State{
		Goal:       testGoal,
		Hypotheses: slate("Single claim"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.Hypotheses[0].Score, 1e-9)
	assert.InDelta(t, 5.0, res.Hypotheses[0].Reviews[0].OverallScore, 1e-9)
}

func TestReviewBatchMissingEntryErrors(t *testing.T) {
	client := &scriptedLLM{batch: batchJSON(
		reviewJSON("Only one came back.", 5, 5),
	)}
	r := New(client, nil)

	_, err := r.Review(context.Background(), State{
		Goal:       testGoal,
		Hypotheses: slate("First claim", "Second claim"),
	})
	assert.ErrorContains(t, err, "review failed for 1 of 2 hypotheses")
}

func TestReviewBatchEmptyEntryErrors(t *testing.T) {
	client := &scriptedLLM{batch: batchJSON(
		reviewJSON("Fine.", 5, 5),
		`{}`,
	)}
	r := New(client, nil)

	_, err := r.Review(context.Background(), State{
		Goal:       testGoal,
		Hypotheses: slate("First claim", "Second claim"),
	})
	assert.ErrorContains(t, err, "review failed for 1 of 2 hypotheses")
}

func TestReviewBatchCallFailure(t *testing.T) {
	client := &scriptedLLM{batchErr: fmt.Errorf("model overloaded")}
	r := New(client, nil)

	_, err := r.Review(context.Background(), State{
		Goal:       testGoal,
		Hypotheses: slate("Only claim"),
	})
	assert.ErrorContains(t, err, "comparative review call")
}

func TestReviewIndividualStrategy(t *testing.T) {
	texts := []string{
		"Claim one", "Claim two", "Claim three",
		"Claim four", "Claim five", "Claim six",
	}
	client := &scriptedLLM{
		individualDefault: reviewJSON("Solid.", 6, 6),
		individual: map[string]string{
			"Claim six": reviewJSON("The strongest of the slate.", 9, 9),
		},
	}
	r := New(client, nil)

	res, err := r.Review(context.Background(), State{
		Goal:       testGoal,
		Hypotheses: slate(texts...),
	})
	require.NoError(t, err)
	assert.Equal(t, "Reviewed 6 hypotheses (parallel individual)", res.Message)

	reqs := client.reqsFor("scoring one candidate hypothesis")
	require.Len(t, reqs, 6)
	for _, req := range reqs {
		assert.Equal(t, llm.ExtendedMaxTokens, req.MaxTokens)
		assert.Equal(t, defaultReviewAttempts, req.Attempts)
	}

	for i, h := range res.Hypotheses {
		require.Len(t, h.Reviews, 1, "hypothesis %d", i)
	}
	assert.Equal(t, "The strongest of the slate.", res.Hypotheses[5].Reviews[0].ReviewSummary)
	assert.InDelta(t, 9.0, res.Hypotheses[5].Score, 1e-9)
	assert.InDelta(t, 6.0, res.Hypotheses[0].Score, 1e-9)
}

func TestReviewIndividualFailureFailsAll(t *testing.T) {
	client := &scriptedLLM{
		individualDefault:   reviewJSON("Solid.", 6, 6),
		individualErrMarker: "Claim four",
	}
	r := New(client, nil)

	_, err := r.Review(context.Background(), State{
		Goal: testGoal,
		Hypotheses: slate(
			"Claim one", "Claim two", "Claim three",
			"Claim four", "Claim five", "Claim six",
		),
	})
	assert.ErrorContains(t, err, "reviewing hypothesis")
}

func TestReviewEmptySlate(t *testing.T) {
	client := &scriptedLLM{}
	r := New(client, nil)

	res, err := r.Review(context.Background(), State{Goal: testGoal})
	require.NoError(t, err)
	assert.Empty(t, res.Hypotheses)
	assert.Equal(t, "No hypotheses to review", res.Message)
	assert.Empty(t, client.calls)
}

// --- Budgets ---

func TestReviewTokenBudget(t *testing.T) {
	cases := map[int]int{
		1:  18000,
		5:  18000,
		6:  19500,
		8:  22500,
		9:  24000,
		12: 24000,
	}
	for n, want := range cases {
		assert.Equal(t, want, reviewTokenBudget(n), "n=%d", n)
	}
}

func TestReviewAttempts(t *testing.T) {
	cases := map[int]int{
		1:  5,
		10: 5,
		11: 7,
		20: 7,
	}
	for n, want := range cases {
		assert.Equal(t, want, reviewAttempts(n), "n=%d", n)
	}
}
