// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"text/template"
)

// proposeTmpl opens the debate: candidate hypotheses argued from the
// goal and, when present, the literature digest.
var proposeTmpl = template.Must(template.New("propose").Parse(`You are the proposing scientist in a structured research debate. Propose {{.N}} candidate hypotheses addressing the research goal.

Research goal:
{{.Goal}}
{{if .Digest}}
Literature digest:
{{.Digest}}

Ground each candidate in specific findings or gaps from the digest.{{else}}
No literature digest is available. Draw on established domain knowledge and state your assumptions explicitly.{{end}}

For each candidate give the hypothesis statement, the reasoning behind it, and what evidence would support or refute it. Number the candidates.
`))

// critiqueTmpl is the adversarial turn over the proposal.
var critiqueTmpl = template.Must(template.New("critique").Parse(`You are the critiquing scientist in a structured research debate. Attack the candidate hypotheses below: identify weak assumptions, confounds, prior work that already answers them, overlaps between candidates, and untestable claims.

Research goal:
{{.Goal}}

Candidate hypotheses:
{{.Proposal}}

Give a numbered critique per candidate, harshest first. Be specific.
`))

// refineTmpl closes the debate with structured hypotheses.
var refineTmpl = template.Must(template.New("refine").Parse(`You are the synthesizing scientist closing a structured research debate. Refine the candidates below into exactly {{.N}} final hypotheses, dropping or merging candidates the critique defeated.

Research goal:
{{.Goal}}

Candidate hypotheses:
{{.Proposal}}

Critique:
{{.Critique}}

Respond with a JSON object of the form:
{"hypotheses": [{"text": "...", "explanation": "...", "literature_grounding": "...", "experiment": "..."}]}

"text" is the hypothesis statement. "explanation" is the refined reasoning. {{if .WithLit}}"literature_grounding" cites the digest findings the hypothesis rests on, by paper title.{{else}}"literature_grounding" names the established knowledge assumed, since no literature digest was available.{{end}} "experiment" sketches a feasible test. Do not include any text outside the JSON object.
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
