// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// reviewBlock is one hypothesis rendered into a review prompt.
type reviewBlock struct {
	Index             int
	Text              string
	Explanation       string
	Grounding         string
	Experiment        string
	NoveltyValidation string
}

func newReviewBlock(i int, h types.Hypothesis) reviewBlock {
	return reviewBlock{
		Index:             i,
		Text:              h.Text,
		Explanation:       h.Explanation,
		Grounding:         h.LiteratureGrounding,
		Experiment:        h.Experiment,
		NoveltyValidation: h.NoveltyValidation,
	}
}

// reviewContract spells out the JSON shape of one review. Shared by the
// comparative and individual prompts so both parse into reviewResponse.
const reviewContract = `Score the criteria "novelty", "plausibility", "testability" and "impact" from 1 to 10. Recompute nothing: report raw criterion scores only.

Each review is a JSON object of the form {"review_summary": "2-4 sentence verdict", "scores": {"novelty": 1-10, "plausibility": 1-10, "testability": 1-10, "impact": 1-10}, "safety_ethical_concerns": "concerns, or an empty string", "detailed_feedback": {"novelty": "...", "plausibility": "...", "testability": "...", "impact": "..."}, "constructive_feedback": "the single most valuable improvement"}.`

type batchReviewPromptData struct {
	Goal       string
	Hypotheses []reviewBlock
}

// batchReviewPromptTmpl scores a whole slate side by side.
var batchReviewPromptTmpl = template.Must(template.New("batchReview").Parse(`You are a senior scientific reviewer scoring a slate of candidate hypotheses side by side. Judge each on its own merits, but calibrate scores across the slate: the strongest and weakest candidates should be clearly separated.

Research goal:
{{.Goal}}
{{range .Hypotheses}}
**Hypothesis {{.Index}}:**
{{.Text}}
{{if .Explanation}}Explanation: {{.Explanation}}
{{end}}{{if .Grounding}}Literature grounding: {{.Grounding}}
{{end}}{{if .Experiment}}Proposed experiment: {{.Experiment}}
{{end}}{{if .NoveltyValidation}}Novelty validation: {{.NoveltyValidation}}
{{end}}{{end}}
` + reviewContract + `

Respond with a JSON object of the form {"reviews": [review, ...]} containing exactly one review per hypothesis, in the order given. Do not include any text outside the JSON object.
`))

type reviewPromptData struct {
	Goal       string
	Hypothesis reviewBlock
}

// reviewPromptTmpl scores one hypothesis.
var reviewPromptTmpl = template.Must(template.New("review").Parse(`You are a senior scientific reviewer scoring one candidate hypothesis.

Research goal:
{{.Goal}}

Hypothesis:
{{.Hypothesis.Text}}
{{if .Hypothesis.Explanation}}Explanation: {{.Hypothesis.Explanation}}
{{end}}{{if .Hypothesis.Grounding}}Literature grounding: {{.Hypothesis.Grounding}}
{{end}}{{if .Hypothesis.Experiment}}Proposed experiment: {{.Hypothesis.Experiment}}
{{end}}{{if .Hypothesis.NoveltyValidation}}Novelty validation: {{.Hypothesis.NoveltyValidation}}
{{end}}
` + reviewContract + `

Respond with the review as a single JSON object. Do not include any text outside the JSON object.
`))

type reflectPromptData struct {
	Goal       string
	Digest     string
	Hypothesis string
	Grounding  string
}

// reflectPromptTmpl checks one hypothesis against the digest.
var reflectPromptTmpl = template.Must(template.New("reflect").Parse(`You are a research scientist checking a hypothesis against a literature digest.

Research goal:
{{.Goal}}

Literature digest:
{{.Digest}}

Hypothesis:
{{.Hypothesis}}
{{if .Grounding}}
Claimed grounding:
{{.Grounding}}
{{end}}
Classify the digest's support for the hypothesis: "supported" when the digest's findings back the claim, "contradicted" when they cut against it, "neutral" when the digest does not bear on it.

Respond with a JSON object of the form {"classification": "supported|contradicted|neutral", "reasoning": "2-3 sentences citing the digest"}. Do not include any text outside the JSON object.
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
