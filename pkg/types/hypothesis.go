// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// GenerationMethod records which strategy produced a hypothesis. Set once at
// creation and never changed afterwards.
type GenerationMethod string

const (
	// MethodLiteratureTools marks hypotheses from the tool-augmented
	// draft-and-validate pipeline.
	MethodLiteratureTools GenerationMethod = "literature_tools"

	// MethodDebateWithLit marks debate hypotheses grounded in a literature
	// digest.
	MethodDebateWithLit GenerationMethod = "debate_with_lit"

	// MethodDebate marks debate hypotheses produced without literature.
	MethodDebate GenerationMethod = "debate"

	// MethodStandard marks hypotheses from single-shot generation.
	MethodStandard GenerationMethod = "standard"
)

// ReviewFailedSentinel is stored as the digest when a literature review could
// not produce one. Downstream code compares against it by equality, never by
// emptiness: an empty digest means "no review ran", the sentinel means "a
// review ran and failed".
const ReviewFailedSentinel = "LITERATURE_REVIEW_FAILED"

// DegradedGroundingDisclaimer replaces literature_grounding on every
// hypothesis generated while no literature review was available.
const DegradedGroundingDisclaimer = "No literature review available. This hypothesis is based on the model's latent knowledge and has not been validated against current research literature. Novelty and scientific validity should be independently verified."

// InitialEloRating is assigned to every new hypothesis before any tournament
// comparisons have run.
const InitialEloRating = 1200.0

// Hypothesis is the unit of output of the generation pipeline.
type Hypothesis struct {
	// ID uniquely identifies the hypothesis within a run.
	ID string `json:"id" yaml:"id"`

	// Text is the hypothesis statement.
	Text string `json:"text" yaml:"text"`

	// Explanation expands on the reasoning behind the statement.
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`

	// LiteratureGrounding cites the literature the hypothesis rests on. In
	// degraded mode the coordinator overwrites this with
	// DegradedGroundingDisclaimer.
	LiteratureGrounding string `json:"literature_grounding,omitempty" yaml:"literature_grounding,omitempty"`

	// Experiment sketches an experiment that could test the hypothesis.
	Experiment string `json:"experiment,omitempty" yaml:"experiment,omitempty"`

	// NoveltyValidation summarizes the overlap analysis against related work.
	NoveltyValidation string `json:"novelty_validation,omitempty" yaml:"novelty_validation,omitempty"`

	// ReflectionNotes holds the literature-support classification written by
	// the reflection pass.
	ReflectionNotes string `json:"reflection_notes,omitempty" yaml:"reflection_notes,omitempty"`

	// Score is the overall score of the most recent review, 0 before any
	// review has run.
	Score float64 `json:"score" yaml:"score"`

	// EloRating is the tournament rating, starting at InitialEloRating.
	EloRating float64 `json:"elo_rating" yaml:"elo_rating"`

	// GenerationMethod records the producing strategy.
	GenerationMethod GenerationMethod `json:"generation_method" yaml:"generation_method"`

	// Reviews lists reviews in the order they were performed.
	Reviews []HypothesisReview `json:"reviews,omitempty" yaml:"reviews,omitempty"`
}

// HypothesisReview is one structured review of a hypothesis.
type HypothesisReview struct {
	// ReviewSummary is the reviewer's prose summary.
	ReviewSummary string `json:"review_summary" yaml:"review_summary"`

	// Scores maps criterion name to a numeric score.
	Scores map[string]float64 `json:"scores" yaml:"scores"`

	// OverallScore is the arithmetic mean of Scores, recomputed locally.
	// Values reported by a model are never trusted.
	OverallScore float64 `json:"overall_score" yaml:"overall_score"`

	// SafetyEthicalConcerns flags safety or ethics issues, empty when none.
	SafetyEthicalConcerns string `json:"safety_ethical_concerns,omitempty" yaml:"safety_ethical_concerns,omitempty"`

	// DetailedFeedback maps criterion name to the reviewer's assessment of
	// that criterion.
	DetailedFeedback map[string]string `json:"detailed_feedback,omitempty" yaml:"detailed_feedback,omitempty"`

	// ConstructiveFeedback suggests concrete improvements.
	ConstructiveFeedback string `json:"constructive_feedback,omitempty" yaml:"constructive_feedback,omitempty"`
}

// RecomputeOverall sets OverallScore to the mean of the criteria present in
// Scores. With no scores the overall is 0.
func (r *HypothesisReview) RecomputeOverall() {
	if len(r.Scores) == 0 {
		r.OverallScore = 0
		return
	}
	var sum float64
	for _, s := range r.Scores {
		sum += s
	}
	r.OverallScore = sum / float64(len(r.Scores))
}

// GenerationCounts is the allocation of a hypothesis budget across
// generation strategies, derived once per run before any strategy starts.
type GenerationCounts struct {
	// ToolsCount is the number of tool-based hypotheses to generate.
	ToolsCount int `json:"tools_count" yaml:"tools_count"`

	// DebateWithLitCount is the number of literature-grounded debate
	// hypotheses to generate.
	DebateWithLitCount int `json:"debate_with_lit_count" yaml:"debate_with_lit_count"`

	// DebateOnlyCount is the number of debate hypotheses to generate
	// without literature.
	DebateOnlyCount int `json:"debate_only_count" yaml:"debate_only_count"`

	// IsDevIsolation reports that the allocation was forced to 100%
	// tool-based for isolated testing.
	IsDevIsolation bool `json:"is_dev_isolation" yaml:"is_dev_isolation"`

	// IsDegradedMode reports that no literature was available and the run
	// falls back to ungrounded debate.
	IsDegradedMode bool `json:"is_degraded_mode" yaml:"is_degraded_mode"`
}

// Total returns the number of hypotheses the allocation will produce.
func (c GenerationCounts) Total() int {
	return c.ToolsCount + c.DebateWithLitCount + c.DebateOnlyCount
}

// ReviewResult is the outcome of a literature review.
type ReviewResult struct {
	// Digest is the synthesized literature analysis handed to generation
	// ("articles with reasoning"). Equal to ReviewFailedSentinel when the
	// review ran but produced nothing usable.
	Digest string `json:"articles_with_reasoning" yaml:"articles_with_reasoning"`

	// Queries lists the search queries used, at most three.
	Queries []string `json:"search_queries,omitempty" yaml:"search_queries,omitempty"`

	// Articles lists the collected papers as durable articles.
	Articles []Article `json:"articles,omitempty" yaml:"articles,omitempty"`

	// Messages holds human-readable status lines accumulated during the
	// review, error-marked on failure.
	Messages []string `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// Failed reports whether the review produced the failure sentinel.
func (r *ReviewResult) Failed() bool {
	return r.Digest == ReviewFailedSentinel
}

// GenerateResult is the outcome of one coordinated generation run.
type GenerateResult struct {
	// Hypotheses in fixed strategy order: tool-based first, then
	// debate-with-literature, then debate-only.
	Hypotheses []Hypothesis `json:"hypotheses" yaml:"hypotheses"`

	// DebateTranscripts concatenates the transcripts of all debate tasks.
	DebateTranscripts []string `json:"debate_transcripts,omitempty" yaml:"debate_transcripts,omitempty"`

	// Count is len(Hypotheses), recorded for callers that only need totals.
	Count int `json:"count" yaml:"count"`

	// Message summarizes the run, listing only strategies that produced
	// hypotheses.
	Message string `json:"message" yaml:"message"`
}
