// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Literature-support classifications a reflection can assign.
const (
	classSupported    = "supported"
	classContradicted = "contradicted"
	classNeutral      = "neutral"
)

// reflectionResponse is the model's JSON verdict for one hypothesis.
type reflectionResponse struct {
	Classification string `json:"classification"`
	Reasoning      string `json:"reasoning"`
}

// Reflect classifies each hypothesis's literature support against the
// digest and writes the verdict into reflection_notes. Without a usable
// digest or without hypotheses the pass is a no-op. Per-hypothesis
// failures are logged and skipped, never fatal.
func (r *Reviewer) Reflect(ctx context.Context, state State) (*Result, error) {
	digest := strings.TrimSpace(state.Digest)
	if digest == "" || digest == types.ReviewFailedSentinel || len(state.Hypotheses) == 0 {
		r.log.Info("reflection skipped",
			zap.Bool("digest", digest != "" && digest != types.ReviewFailedSentinel),
			zap.Int("hypotheses", len(state.Hypotheses)))
		return &Result{Hypotheses: state.Hypotheses, Message: "Reflection skipped"}, nil
	}

	hyps := make([]types.Hypothesis, len(state.Hypotheses))
	copy(hyps, state.Hypotheses)

	updated := 0
	for i := range hyps {
		prompt, err := render(reflectPromptTmpl, reflectPromptData{
			Goal:       state.Goal,
			Digest:     digest,
			Hypothesis: hyps[i].Text,
			Grounding:  hyps[i].LiteratureGrounding,
		})
		if err != nil {
			r.log.Warn("rendering reflection prompt", zap.Error(err))
			continue
		}
		var resp reflectionResponse
		err = llm.CompleteJSON(ctx, r.llm, llm.Request{
			Prompt:      prompt,
			Temperature: llm.LowTemperature,
		}, &resp)
		if err != nil {
			r.log.Warn("reflection failed",
				zap.Int("hypothesis", i), zap.Error(err))
			continue
		}
		hyps[i].ReflectionNotes = reflectionNotes(resp)
		updated++
	}

	msg := fmt.Sprintf("Reflected literature support onto %d of %d hypotheses", updated, len(hyps))
	r.log.Info("reflection complete",
		zap.Int("updated", updated), zap.Int("hypotheses", len(hyps)))
	state.Progress.Emit(ctx, types.ProgressEvent{
		Name:     "reflection_complete",
		Message:  msg,
		Progress: progressReflectionComplete,
	})
	return &Result{Hypotheses: hyps, Message: msg}, nil
}

// reflectionNotes renders a verdict as reflection_notes text.
func reflectionNotes(resp reflectionResponse) string {
	return strings.TrimSpace(resp.Reasoning) + "\n\nClassification: " + classification(resp.Classification)
}

// classification normalizes a model-reported support class.
func classification(s string) string {
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case classSupported, classContradicted, classNeutral:
		return c
	default:
		return classNeutral
	}
}
