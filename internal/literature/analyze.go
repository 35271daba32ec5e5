// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// paperAnalysis is one paper's structured analysis, flattened for the
// synthesis prompt.
type paperAnalysis struct {
	Title string
	Text  string
}

type analysisResponse struct {
	Summary          string   `json:"summary"`
	ResearchGaps     []string `json:"research_gaps"`
	Limitations      []string `json:"limitations"`
	FutureDirections []string `json:"future_directions"`
}

// analyzePapers runs the per-paper analysis fan-out. Papers without
// analyzable content are skipped and failed analyses dropped; relative
// order of the survivors is preserved.
func (o *Orchestrator) analyzePapers(ctx context.Context, goal string, papers []types.Paper) []paperAnalysis {
	slots := make([]*paperAnalysis, len(papers))
	var wg sync.WaitGroup
	for i := range papers {
		content := analyzableContent(&papers[i])
		if content == "" {
			continue
		}
		wg.Add(1)
		go func(i int, title, content string) {
			defer wg.Done()
			prompt, err := render(analysisPromptTmpl, struct {
				Goal    string
				Title   string
				Content string
			}{Goal: goal, Title: title, Content: types.TruncateContent(content)})
			if err != nil {
				o.log.Warn("rendering analysis prompt", zap.Error(err))
				return
			}
			var resp analysisResponse
			err = llm.CompleteJSON(ctx, o.llm, llm.Request{
				Prompt:      prompt,
				Temperature: llm.LowTemperature,
			}, &resp)
			if err != nil {
				o.log.Warn("paper analysis failed",
					zap.String("paper", title), zap.Error(err))
				return
			}
			slots[i] = &paperAnalysis{Title: title, Text: formatAnalysis(resp)}
		}(i, papers[i].Title, content)
	}
	wg.Wait()

	var analyses []paperAnalysis
	for _, a := range slots {
		if a != nil {
			analyses = append(analyses, *a)
		}
	}
	return analyses
}

// analyzableContent picks the text a paper is analyzed on: fulltext when
// present, otherwise the abstract of a paper carrying a direct PDF link.
// Abstract-only papers without a PDF are not analyzed.
func analyzableContent(p *types.Paper) string {
	if p.Fulltext != "" {
		return p.Fulltext
	}
	if (p.PDFURL != "" || len(p.PDFLinks) > 0) && p.Abstract != "" {
		return p.Abstract
	}
	return ""
}

func formatAnalysis(resp analysisResponse) string {
	var b strings.Builder
	b.WriteString(resp.Summary)
	writeList(&b, "Research gaps", resp.ResearchGaps)
	writeList(&b, "Limitations", resp.Limitations)
	writeList(&b, "Future directions", resp.FutureDirections)
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// synthesize merges the per-paper analyses into the literature digest.
func (o *Orchestrator) synthesize(ctx context.Context, goal string, analyses []paperAnalysis) (string, error) {
	prompt, err := render(synthesisPromptTmpl, struct {
		Goal     string
		Analyses []paperAnalysis
	}{Goal: goal, Analyses: analyses})
	if err != nil {
		return "", fmt.Errorf("rendering synthesis prompt: %w", err)
	}
	digest, err := o.llm.Complete(ctx, llm.Request{
		Prompt:    prompt,
		MaxTokens: llm.ExtendedMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(digest) == "" {
		return "", fmt.Errorf("empty synthesis response")
	}
	return digest, nil
}
