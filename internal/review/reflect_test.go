// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

const testDigest = "Prior work shows p16 accumulation commits fibroblasts within two divisions."

func TestReflectClassifiesEachHypothesis(t *testing.T) {
	client := &scriptedLLM{
		reflectDefault: `{"classification": "SUPPORTED", "reasoning": "The digest reports the same commitment point."}`,
		reflect: map[string]string{
			"Second claim": `{"classification": "somewhat", "reasoning": "The digest does not address this axis."}`,
		},
	}
	r := New(client, nil)

	hyps := slate("First claim", "Second claim")
	hyps[0].LiteratureGrounding = "Grounded in the digest's p16 findings."
	var events []types.ProgressEvent

	res, err := r.Reflect(context.Background(), State{
		Goal:       testGoal,
		Digest:     testDigest,
		Hypotheses: hyps,
		Progress:   progressRecorder(&events),
	})
	require.NoError(t, err)
	require.Len(t, res.Hypotheses, 2)
	assert.Equal(t, "Reflected literature support onto 2 of 2 hypotheses", res.Message)

	assert.Equal(t,
		"The digest reports the same commitment point.\n\nClassification: supported",
		res.Hypotheses[0].ReflectionNotes)
	// Unknown classifications fall back to neutral.
	assert.Equal(t,
		"The digest does not address this axis.\n\nClassification: neutral",
		res.Hypotheses[1].ReflectionNotes)

	reqs := client.reqsFor("against a literature digest")
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Prompt, testDigest)
	assert.Contains(t, reqs[0].Prompt, "First claim")
	assert.Contains(t, reqs[0].Prompt, "Grounded in the digest's p16 findings.")

	// Reflection never touches scores or reviews, or the input slate.
	assert.Empty(t, res.Hypotheses[0].Reviews)
	assert.Empty(t, hyps[0].ReflectionNotes)

	require.Len(t, events, 1)
	assert.Equal(t, "reflection_complete", events[0].Name)
	assert.InDelta(t, 0.9, events[0].Progress, 1e-9)
}

func TestReflectSkipsWithoutDigest(t *testing.T) {
	cases := map[string]State{
		"empty digest":    {Goal: testGoal, Hypotheses: slate("Claim")},
		"sentinel digest": {Goal: testGoal, Digest: types.ReviewFailedSentinel, Hypotheses: slate("Claim")},
		"no hypotheses":   {Goal: testGoal, Digest: testDigest},
	}
	for name, state := range cases {
		client := &scriptedLLM{}
		r := New(client, nil)

		res, err := r.Reflect(context.Background(), state)
		require.NoError(t, err, name)
		assert.Equal(t, "Reflection skipped", res.Message, name)
		assert.Len(t, res.Hypotheses, len(state.Hypotheses), name)
		assert.Empty(t, client.calls, name)
	}
}

func TestReflectPerItemFailureSkips(t *testing.T) {
	client := &scriptedLLM{
		reflectDefault:   `{"classification": "contradicted", "reasoning": "The digest shows the opposite."}`,
		reflectErrMarker: "First claim",
	}
	r := New(client, nil)

	res, err := r.Reflect(context.Background(), State{
		Goal:       testGoal,
		Digest:     testDigest,
		Hypotheses: slate("First claim", "Second claim"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Reflected literature support onto 1 of 2 hypotheses", res.Message)
	assert.Empty(t, res.Hypotheses[0].ReflectionNotes)
	assert.Equal(t,
		"The digest shows the opposite.\n\nClassification: contradicted",
		res.Hypotheses[1].ReflectionNotes)
}

func TestClassification(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"supported", "supported"},
		{" Contradicted ", "contradicted"},
		{"NEUTRAL", "neutral"},
		{"strongly supported", "neutral"},
		{"", "neutral"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classification(tc.in), "in=%q", tc.in)
	}
}
