// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolgen

import (
	"bytes"
	"text/template"
)

type draftPromptData struct {
	Goal   string
	Digest string
	N      int
	Tools  string
}

// draftPromptTmpl opens the drafting agent conversation.
var draftPromptTmpl = template.Must(template.New("draft").Parse(`You are a hypothesis-drafting scientist. Draft exactly {{.N}} novel, testable hypotheses addressing the research goal below.

Research goal:
{{.Goal}}

Literature analysis:
{{.Digest}}
{{if .Tools}}
Available tools:
{{.Tools}}

Use the tools to examine the current literature before committing to a gap. Search for the phenomena you plan to build on and read what comes back; a hypothesis that restates published work is worthless.
{{end}}
Each draft must name the specific gap it fills and the sources that expose the gap.

Respond with a JSON object of the form {"hypotheses": [{"text": "the hypothesis statement", "gap_reasoning": "why this gap is open", "sources": ["supporting paper title or id"]}]}. Do not include any text outside the JSON object.
`))

type noveltyPromptData struct {
	Goal       string
	Hypothesis string
	Title      string
	Content    string
}

// noveltyPromptTmpl compares one draft against one paper.
var noveltyPromptTmpl = template.Must(template.New("novelty").Parse(`You are a novelty analyst. Judge how much the paper below overlaps with the proposed hypothesis.

Research goal:
{{.Goal}}

Proposed hypothesis:
{{.Hypothesis}}

Paper title: {{.Title}}

Paper content:
{{.Content}}

Rate the overlap "high" if the paper already establishes or refutes the hypothesis, "medium" if it covers part of the claim, "low" if it is merely adjacent.

Respond with a JSON object of the form {"overlap": "high|medium|low", "assessment": "one or two sentences on what the paper does and does not settle"}. Do not include any text outside the JSON object.
`))

type validateDraftBlock struct {
	Index        int
	Text         string
	GapReasoning string
	Findings     string
}

type validatePromptData struct {
	Goal   string
	Drafts []validateDraftBlock
	Tools  string
}

// validatePromptTmpl runs the approve-refine-pivot pass over a batch.
var validatePromptTmpl = template.Must(template.New("validate").Parse(`You are a validating scientist. For each draft hypothesis below, weigh its novelty findings and decide: approve it unchanged when the literature leaves its gap open, refine it when published work covers part of the claim, or pivot to a neighboring gap when the claim is already settled.

Research goal:
{{.Goal}}
{{range .Drafts}}
### Draft {{.Index}}
Hypothesis: {{.Text}}
Gap reasoning: {{.GapReasoning}}
Novelty findings:
{{.Findings}}
{{end}}{{if .Tools}}
Available tools:
{{.Tools}}

Search again when a finding leaves you unsure; do not approve on a hunch.
{{end}}
Respond with a JSON object of the form {"hypotheses": [{"hypothesis": "final statement", "explanation": "mechanism and rationale", "literature_grounding": "how the findings support it", "experiment": "a concrete experiment to test it", "novelty_validation": "what the overlap analysis showed"}]}, one entry per draft in order. Do not include any text outside the JSON object.
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
