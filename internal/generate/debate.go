// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Debater is the default debate generator: a bounded LLM self-dialogue
// in three turns (propose, critique, refine) whose final turn emits
// structured hypotheses.
type Debater struct {
	llm llm.Client
	log *zap.Logger
}

var _ DebateGenerator = (*Debater)(nil)

// NewDebater builds the default debate generator.
func NewDebater(client llm.Client, log *zap.Logger) *Debater {
	if log == nil {
		log = zap.NewNop()
	}
	return &Debater{llm: client, log: log}
}

type debateHypothesis struct {
	Text                string `json:"text"`
	Explanation         string `json:"explanation"`
	LiteratureGrounding string `json:"literature_grounding"`
	Experiment          string `json:"experiment"`
}

// Generate runs one debate producing up to n hypotheses and a single
// transcript covering all three turns.
func (d *Debater) Generate(ctx context.Context, goal, digest string, n int, withLit bool) ([]types.Hypothesis, []string, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("hypothesis count must be positive, got %d", n)
	}

	proposal, err := d.turn(ctx, proposeTmpl, struct {
		Goal   string
		Digest string
		N      int
	}{Goal: goal, Digest: digest, N: n}, llm.HighTemperature, llm.ExtendedMaxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("debate proposal turn: %w", err)
	}

	critique, err := d.turn(ctx, critiqueTmpl, struct {
		Goal     string
		Proposal string
	}{Goal: goal, Proposal: proposal}, llm.LowTemperature, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("debate critique turn: %w", err)
	}

	refined, err := d.turn(ctx, refineTmpl, struct {
		Goal     string
		Proposal string
		Critique string
		N        int
		WithLit  bool
	}{Goal: goal, Proposal: proposal, Critique: critique, N: n, WithLit: withLit}, llm.LowTemperature, llm.ExtendedMaxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("debate refinement turn: %w", err)
	}

	var out struct {
		Hypotheses []debateHypothesis `json:"hypotheses"`
	}
	if err := llm.DecodeJSON(refined, &out); err != nil {
		return nil, nil, fmt.Errorf("parsing refined hypotheses: %w", err)
	}
	if len(out.Hypotheses) > n {
		out.Hypotheses = out.Hypotheses[:n]
	}

	method := types.MethodDebate
	if withLit {
		method = types.MethodDebateWithLit
	}
	hyps := make([]types.Hypothesis, 0, len(out.Hypotheses))
	for _, h := range out.Hypotheses {
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		hyps = append(hyps, types.Hypothesis{
			ID:                  uuid.NewString(),
			Text:                h.Text,
			Explanation:         h.Explanation,
			LiteratureGrounding: h.LiteratureGrounding,
			Experiment:          h.Experiment,
			EloRating:           types.InitialEloRating,
			GenerationMethod:    method,
		})
	}
	if len(hyps) == 0 {
		return nil, nil, fmt.Errorf("debate produced no usable hypotheses")
	}
	if len(hyps) < n {
		d.log.Warn("debate under-produced",
			zap.Int("requested", n), zap.Int("produced", len(hyps)))
	}

	transcript := strings.Join([]string{
		"## Proposal\n\n" + proposal,
		"## Critique\n\n" + critique,
		"## Refinement\n\n" + refined,
	}, "\n\n")
	return hyps, []string{transcript}, nil
}

func (d *Debater) turn(ctx context.Context, tmpl *template.Template, data any, temp float64, tokens int) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	return d.llm.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: temp,
		MaxTokens:   tokens,
	})
}
