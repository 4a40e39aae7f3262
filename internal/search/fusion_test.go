package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRFFusion_Score(t *testing.T) {
	f := NewRRFFusion(0)
	require.Equal(t, 60, f.K)

	out := f.Fuse(RankedList{Source: SourceLexical, Weight: 1, IDs: []string{"a", "b"}})

	require.Len(t, out, 2)
	assert.InDelta(t, 1.0/61, out[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62, out[1].Score, 1e-12)
	assert.Equal(t, 0, out[0].Rank(SourceLexical))
	assert.Equal(t, -1, out[0].Rank(SourceVector))
}

func TestRRFFusion_WeightsNotNormalized(t *testing.T) {
	out := NewRRFFusion(60).Fuse(
		RankedList{Source: SourceLexical, Weight: 0.3, IDs: []string{"a"}},
		RankedList{Source: SourceVector, Weight: 0.7, IDs: []string{"a"}},
	)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0/61, out[0].Score, 1e-12)
	assert.Equal(t, 2, out[0].Sources())
}

func TestRRFFusion_TwoSourcesBeatOne(t *testing.T) {
	// Given: "both" at rank 0 in both lists, "solo" at rank 0 in one
	out := NewRRFFusion(60).Fuse(
		RankedList{Source: SourceLexical, Weight: 0.5, IDs: []string{"both", "x"}},
		RankedList{Source: SourceVector, Weight: 0.5, IDs: []string{"solo", "both"}},
	)

	scores := map[string]float64{}
	for _, c := range out {
		scores[c.DocID] = c.Score
	}
	assert.GreaterOrEqual(t, scores["both"], scores["solo"])
	assert.Equal(t, "both", out[0].DocID)
}

func TestRRFFusion_SortedNonIncreasing(t *testing.T) {
	out := NewRRFFusion(60).Fuse(
		RankedList{Source: SourceLexical, Weight: 0.3, IDs: []string{"a", "b", "c", "d"}},
		RankedList{Source: SourceVector, Weight: 0.7, IDs: []string{"d", "e", "a"}},
	)
	require.Len(t, out, 5)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestRRFFusion_TieBreaks(t *testing.T) {
	tests := []struct {
		name  string
		lists []RankedList
		want  []string
	}{
		{
			name: "lexical presence breaks equal single-source scores",
			lists: []RankedList{
				{Source: SourceVector, Weight: 1, IDs: []string{"a"}},
				{Source: SourceLexical, Weight: 1, IDs: []string{"b"}},
			},
			want: []string{"b", "a"},
		},
		{
			name: "doc id breaks remaining ties",
			lists: []RankedList{
				{Source: "x", Weight: 1, IDs: []string{"b"}},
				{Source: "y", Weight: 1, IDs: []string{"a"}},
			},
			want: []string{"a", "b"},
		},
		{
			name: "more sources win an exact tie",
			lists: []RankedList{
				{Source: SourceLexical, Weight: 1, IDs: []string{"solo"}},
				{Source: "x", Weight: 0, IDs: []string{"pair"}},
				{Source: "y", Weight: 1, IDs: []string{"pair"}},
			},
			want: []string{"pair", "solo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewRRFFusion(60).Fuse(tt.lists...)
			got := make([]string, len(out))
			for i, c := range out {
				got[i] = c.DocID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRRFFusion_EdgeCases(t *testing.T) {
	f := NewRRFFusion(60)

	empty := f.Fuse()
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.Empty(t, f.Fuse(RankedList{Source: SourceLexical, Weight: 1}))

	// A repeated id keeps its first rank.
	out := f.Fuse(RankedList{Source: SourceLexical, Weight: 1, IDs: []string{"a", "a"}})
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0/61, out[0].Score, 1e-12)

	// Zero and negative weights contribute nothing.
	out = f.Fuse(RankedList{Source: SourceLexical, Weight: -1, IDs: []string{"a"}})
	require.Len(t, out, 1)
	assert.Zero(t, out[0].Score)
}
