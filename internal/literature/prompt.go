// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"bytes"
	"text/template"
)

// queryPromptTmpl asks the model for search queries when no remote
// query-generation tool is configured.
var queryPromptTmpl = template.Must(template.New("queries").Parse(`You are a scientific literature search strategist. Generate up to {{.MaxQueries}} search queries for the research goal below.

Research goal:
{{.Goal}}

Supervisor guidance:
{{.Guidance}}

{{if .Boolean}}Write each query in PubMed boolean syntax: quoted phrases combined with AND/OR, specific biomedical terminology, no explanatory text.{{else}}Write each query as a short natural-language phrase a scholarly search engine would accept.{{end}}

Respond with a JSON object of the form {"queries": ["query one", "query two"]}. Do not include any text outside the JSON object.
`))

// analysisPromptTmpl analyzes one paper against the research goal.
var analysisPromptTmpl = template.Must(template.New("analysis").Parse(`You are a research analyst. Read the paper below and analyze it in relation to the research goal.

Research goal:
{{.Goal}}

Paper title: {{.Title}}

Paper content:
{{.Content}}

Identify:
- summary: what the paper establishes, in 2-4 sentences
- research_gaps: open questions the paper exposes but does not answer
- limitations: methodological or scope limitations of the work
- future_directions: concrete follow-up work the findings suggest

Respond with a JSON object containing the fields "summary" (string), "research_gaps", "limitations" and "future_directions" (each an array of strings). Do not include any text outside the JSON object.
`))

// synthesisPromptTmpl merges the per-paper analyses into one digest.
var synthesisPromptTmpl = template.Must(template.New("synthesis").Parse(`You are a senior research scientist preparing a literature digest for hypothesis generation.

Research goal:
{{.Goal}}

Per-paper analyses:
{{range .Analyses}}
### {{.Title}}
{{.Text}}
{{end}}

Synthesize these analyses into a single digest: the current state of knowledge, the most important unexplored gaps, contradictions between papers, and the openings most promising for novel hypotheses. Cite papers by title when attributing findings. Write flowing prose, not JSON.
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
