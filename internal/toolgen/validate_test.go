// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolgen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchReports(t *testing.T) {
	reports := func(n int) []draftReport {
		out := make([]draftReport, n)
		for i := range out {
			out[i] = draftReport{draft: draft{Text: fmt.Sprintf("draft %d", i+1)}}
		}
		return out
	}

	cases := []struct {
		n    int
		want []int
	}{
		{0, nil},
		{1, []int{1}},
		{6, []int{6}},
		{7, []int{6, 1}},
		{8, []int{6, 2}},
		{13, []int{6, 6, 1}},
	}
	for _, tc := range cases {
		batches := batchReports(reports(tc.n), validateBatchSize)
		require.Len(t, batches, len(tc.want), "n=%d", tc.n)
		for i, size := range tc.want {
			assert.Len(t, batches[i], size, "n=%d batch=%d", tc.n, i)
		}
	}

	// Batch order preserves draft order.
	batches := batchReports(reports(8), validateBatchSize)
	assert.Equal(t, "draft 1", batches[0][0].draft.Text)
	assert.Equal(t, "draft 7", batches[1][0].draft.Text)
}

func TestBatchTokenBudget(t *testing.T) {
	cases := map[int]int{
		1: 10500,
		2: 13000,
		4: 18000,
		5: 20000,
		6: 20000,
	}
	for batchSize, want := range cases {
		assert.Equal(t, want, batchTokenBudget(batchSize), "batchSize=%d", batchSize)
	}
}

func TestBatchIterationBudget(t *testing.T) {
	cases := map[int]int{
		0:  20,
		1:  22,
		5:  30,
		10: 40,
		12: 40,
	}
	for corpus, want := range cases {
		assert.Equal(t, want, batchIterationBudget(corpus), "corpus=%d", corpus)
	}
}

func TestOverlapLevel(t *testing.T) {
	cases := map[string]string{
		"low":         "low",
		"LOW":         "low",
		" Medium ":    "medium",
		"high":        "high",
		"substantial": "unknown",
		"":            "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, overlapLevel(in), "in=%q", in)
	}
}

func TestFormatFindings(t *testing.T) {
	assert.Equal(t, "No overlapping fulltext papers were found.", formatFindings(nil))

	got := formatFindings([]noveltyFinding{
		{Title: "Paper A", Overlap: "low", Assessment: "Different claim."},
		{Title: "Paper B", Overlap: "high", Assessment: "Already shown."},
	})
	want := "Compared against 2 related papers:\n" +
		"- Paper A: low overlap. Different claim.\n" +
		"- Paper B: high overlap. Already shown."
	assert.Equal(t, want, got)
}

func TestValidatedHypothesisStatement(t *testing.T) {
	assert.Equal(t, "A", validatedHypothesis{Hypothesis: " A ", Text: "B"}.statement())
	assert.Equal(t, "B", validatedHypothesis{Text: " B "}.statement())
	assert.Empty(t, validatedHypothesis{}.statement())
}
