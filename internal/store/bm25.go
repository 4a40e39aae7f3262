package store

import (
	"cmp"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// BM25Params holds the scoring constants.
type BM25Params struct {
	K1 float64 `json:"k1"`
	B  float64 `json:"b"`
}

// DefaultBM25Params returns k1=1.5, b=0.75.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75}
}

// DocMeta is the per-document payload stored in the lexical index so that
// hits can be rendered without touching the entity store.
type DocMeta struct {
	ID            string   `json:"doc_id"`
	Date          string   `json:"date"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Persons       []string `json:"persons,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Concepts      []string `json:"concepts,omitempty"`
}

// Posting is one (document, term frequency) entry.
type Posting struct {
	Doc uint32
	TF  uint32
}

// LexicalHit is a scored document.
type LexicalHit struct {
	Ordinal uint32
	DocID   string
	Score   float64
}

// IndexStats describes a built index.
type IndexStats struct {
	SnapshotID   string    `json:"snapshot_id"`
	BuiltAt      time.Time `json:"built_at"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	Postings     int       `json:"postings"`
	AvgDocLength float64   `json:"avg_doc_length"`
	FirstDate    string    `json:"first_date,omitempty"`
	LastDate     string    `json:"last_date,omitempty"`
}

// LexicalIndex is an immutable BM25 inverted index in arena layout: term
// strings live in one slice, the postings of term t are
// postings[offsets[t]:offsets[t+1]], and every per-document array is
// indexed by document ordinal. It is built once and then shared by any
// number of concurrent readers without locking.
type LexicalIndex struct {
	params     BM25Params
	snapshotID string
	builtAt    time.Time

	terms    []string
	termIDs  map[string]uint32
	offsets  []uint32
	postings []Posting
	df       []uint32

	docs      []DocMeta
	docLens   []uint32
	avgDocLen float64
	docIDs    map[string]uint32

	// byDate lists ordinals sorted by (date, ordinal) for range lookups.
	byDate []uint32

	tokenizer *Tokenizer
}

// Len returns the number of indexed documents.
func (ix *LexicalIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.docs)
}

// SnapshotID identifies the build that produced this index.
func (ix *LexicalIndex) SnapshotID() string { return ix.snapshotID }

// Params returns the scoring constants.
func (ix *LexicalIndex) Params() BM25Params { return ix.params }

// Tokenizer returns the tokenizer used for queries.
func (ix *LexicalIndex) Tokenizer() *Tokenizer { return ix.tokenizer }

// Doc returns the metadata of the document at ordinal.
func (ix *LexicalIndex) Doc(ordinal uint32) *DocMeta {
	if int(ordinal) >= len(ix.docs) {
		return nil
	}
	return &ix.docs[ordinal]
}

// Lookup returns the metadata of the document with the given id.
func (ix *LexicalIndex) Lookup(docID string) (*DocMeta, bool) {
	if ix == nil {
		return nil, false
	}
	ord, ok := ix.docIDs[docID]
	if !ok {
		return nil, false
	}
	return &ix.docs[ord], true
}

// DocFreq returns the document frequency of an already-tokenized term.
func (ix *LexicalIndex) DocFreq(term string) int {
	id, ok := ix.termIDs[term]
	if !ok {
		return 0
	}
	return int(ix.df[id])
}

// IDF returns ln((N - df + 0.5) / (df + 0.5) + 1), which is never negative.
func (ix *LexicalIndex) IDF(df int) float64 {
	n := float64(len(ix.docs))
	d := float64(df)
	return math.Log((n-d+0.5)/(d+0.5) + 1.0)
}

// Stats summarizes the index.
func (ix *LexicalIndex) Stats() IndexStats {
	s := IndexStats{
		SnapshotID:   ix.snapshotID,
		BuiltAt:      ix.builtAt,
		Documents:    len(ix.docs),
		Terms:        len(ix.terms),
		Postings:     len(ix.postings),
		AvgDocLength: ix.avgDocLen,
	}
	if len(ix.byDate) > 0 {
		s.FirstDate = ix.docs[ix.byDate[0]].Date
		s.LastDate = ix.docs[ix.byDate[len(ix.byDate)-1]].Date
	}
	return s
}

// Search scores documents against query with BM25 and returns at most topK
// hits sorted by score descending, ties broken by ascending ordinal. A topK
// of zero or less returns every match. Queries that tokenize to nothing and
// invalid date ranges return an empty result. Calling Search on a nil index
// returns an IndexNotBuilt error.
func (ix *LexicalIndex) Search(query string, topK int, dates DateRange) ([]LexicalHit, error) {
	if ix == nil {
		return nil, aerrors.IndexNotBuilt()
	}
	if !dates.Valid() {
		return []LexicalHit{}, nil
	}

	tokens := ix.tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return []LexicalHit{}, nil
	}

	admit := ix.dateFilter(dates)
	if admit != nil && admit.IsEmpty() {
		return []LexicalHit{}, nil
	}

	k1, b := ix.params.K1, ix.params.B
	avg := ix.avgDocLen
	if avg == 0 {
		avg = 1
	}

	scores := make(map[uint32]float64)
	// Repeated query tokens contribute once per occurrence.
	for _, tok := range tokens {
		id, ok := ix.termIDs[tok]
		if !ok {
			continue
		}
		idf := ix.IDF(int(ix.df[id]))
		for _, p := range ix.postings[ix.offsets[id]:ix.offsets[id+1]] {
			if admit != nil && !admit.Contains(p.Doc) {
				continue
			}
			tf := float64(p.TF)
			norm := k1 * (1 - b + b*float64(ix.docLens[p.Doc])/avg)
			scores[p.Doc] += idf * (tf * (k1 + 1)) / (tf + norm)
		}
	}

	hits := make([]LexicalHit, 0, len(scores))
	for ord, score := range scores {
		hits = append(hits, LexicalHit{Ordinal: ord, DocID: ix.docs[ord].ID, Score: score})
	}
	slices.SortFunc(hits, func(a, b LexicalHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// dateFilter returns the set of admissible ordinals, or nil when the range
// is unbounded.
func (ix *LexicalIndex) dateFilter(dates DateRange) *roaring.Bitmap {
	if dates.IsZero() {
		return nil
	}

	lo := 0
	if dates.Start != "" {
		lo = sort.Search(len(ix.byDate), func(i int) bool {
			return ix.docs[ix.byDate[i]].Date >= dates.Start
		})
	}
	hi := len(ix.byDate)
	if dates.End != "" {
		hi = sort.Search(len(ix.byDate), func(i int) bool {
			return ix.docs[ix.byDate[i]].Date > dates.End
		})
	}

	bm := roaring.New()
	bm.AddMany(ix.byDate[lo:max(lo, hi)])
	return bm
}

// finalize derives the date order and id lookup from docs.
func (ix *LexicalIndex) finalize() {
	ix.byDate = make([]uint32, len(ix.docs))
	ix.docIDs = make(map[string]uint32, len(ix.docs))
	for i := range ix.docs {
		ix.byDate[i] = uint32(i)
		ix.docIDs[ix.docs[i].ID] = uint32(i)
	}
	slices.SortStableFunc(ix.byDate, func(a, b uint32) int {
		return cmp.Compare(ix.docs[a].Date, ix.docs[b].Date)
	})
}
