// Package search is the hybrid retrieval engine: it runs the lexical index
// and an optional vector adapter side by side, merges their rankings with
// Reciprocal Rank Fusion and resolves the winners to documents.
package search

import (
	"sort"
)

// DefaultRRFConstant is the RRF smoothing constant K.
const DefaultRRFConstant = 60

// Source names used in fused candidates.
const (
	SourceLexical = "lexical"
	SourceVector  = "vector"
)

// RankedList is one source's ranking, best first.
type RankedList struct {
	Source string
	Weight float64
	IDs    []string
}

// FusionCandidate is a document after fusion. Ranks are 0-based; -1 means
// the document was absent from that source.
type FusionCandidate struct {
	DocID string
	Score float64
	Ranks map[string]int
}

// Rank returns the 0-based rank of the candidate in source, or -1.
func (c *FusionCandidate) Rank(source string) int {
	if r, ok := c.Ranks[source]; ok {
		return r
	}
	return -1
}

// Sources returns the number of lists the candidate appeared in.
func (c *FusionCandidate) Sources() int {
	return len(c.Ranks)
}

// RRFFusion combines rankings with Reciprocal Rank Fusion:
//
//	score(d) = Σ weight_i / (K + rank_i + 1)
//
// with 0-based rank_i. A document missing from a list gets nothing from it.
// Scores are not normalized.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates a fusion with constant k. Non-positive k means 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges lists. Results are sorted by score desc, then number of
// sources desc, then best lexical rank, then doc id. A document listed twice
// in the same list keeps its first (best) rank.
func (f *RRFFusion) Fuse(lists ...RankedList) []*FusionCandidate {
	capacity := 0
	for _, l := range lists {
		capacity += len(l.IDs)
	}
	byID := make(map[string]*FusionCandidate, capacity)

	for _, l := range lists {
		w := l.Weight
		if w < 0 {
			w = 0
		}
		for rank, id := range l.IDs {
			c, ok := byID[id]
			if !ok {
				c = &FusionCandidate{DocID: id, Ranks: make(map[string]int, len(lists))}
				byID[id] = c
			}
			if _, seen := c.Ranks[l.Source]; seen {
				continue
			}
			c.Ranks[l.Source] = rank
			c.Score += w / float64(f.K+rank+1)
		}
	}

	out := make([]*FusionCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func less(a, b *FusionCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Sources() != b.Sources() {
		return a.Sources() > b.Sources()
	}
	ra, rb := a.Rank(SourceLexical), b.Rank(SourceLexical)
	if ra != rb {
		// Present beats absent; lower rank beats higher.
		if ra < 0 {
			return false
		}
		if rb < 0 {
			return true
		}
		return ra < rb
	}
	return a.DocID < b.DocID
}
