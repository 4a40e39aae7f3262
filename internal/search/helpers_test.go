package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archivist/internal/store"
)

var wordAnalyzer = store.MorphAnalyzerFunc(func(text string) []store.Morpheme {
	var out []store.Morpheme
	for _, f := range strings.Fields(text) {
		out = append(out, store.Morpheme{Form: f, Tag: "NNG"})
	}
	return out
})

func corpus() []*store.Document {
	return []*store.Document{
		{ID: "d1", Date: "2024-01-10", Title: "반도체 수출", Content: "수출 증가", Persons: []string{"홍길동"}},
		{ID: "d2", Date: "2024-02-05", Title: "반도체 공장", Content: "공장 건설", Organizations: []string{"삼성전자"}},
		{ID: "d3", Date: "2024-03-01", Title: "날씨", Content: "맑음 하늘"},
		{ID: "d4", Date: "2024-03-15", Title: "반도체 가격", Content: "가격 하락", Persons: []string{"이재명"}},
	}
}

func buildIndex(t *testing.T, docs []*store.Document) *store.LexicalIndex {
	t.Helper()
	idocs := make([]store.IndexDocument, len(docs))
	for i, d := range docs {
		idocs[i] = store.NewIndexDocument(d)
	}
	ix, err := store.BuildLexicalIndex(context.Background(), idocs, store.BuildOptions{
		Tokenizer: store.NewTokenizer(wordAnalyzer),
		Workers:   2,
	})
	require.NoError(t, err)
	return ix
}

func newEntityStore(t *testing.T, docs []*store.Document) *store.EntityStore {
	t.Helper()
	s, err := store.OpenEntityStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	if len(docs) > 0 {
		_, err = s.UpsertDocuments(context.Background(), docs)
		require.NoError(t, err)
	}
	return s
}

// stuckVector blocks until released and never looks at its context.
type stuckVector struct {
	release chan struct{}
}

func newStuckVector(t *testing.T) *stuckVector {
	v := &stuckVector{release: make(chan struct{})}
	t.Cleanup(func() { close(v.release) })
	return v
}

func (v *stuckVector) SearchVectors(context.Context, []float32, int, VectorFilter) ([]VectorHit, error) {
	<-v.release
	return []VectorHit{{DocID: "d3", Similarity: 1}}, nil
}

func (v *stuckVector) FiltersDates() bool { return false }

// fakeVector returns canned hits.
type fakeVector struct {
	mu           sync.Mutex
	hits         []VectorHit
	err          error
	delay        time.Duration
	filtersDates bool

	calls    atomic.Int64
	lastTopK atomic.Int64
	lastEnt  atomic.Value
}

func (f *fakeVector) SearchVectors(ctx context.Context, _ []float32, topK int, filter VectorFilter) ([]VectorHit, error) {
	f.calls.Add(1)
	f.lastTopK.Store(int64(topK))
	f.lastEnt.Store(filter.Entity)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]VectorHit(nil), f.hits...), nil
}

func (f *fakeVector) FiltersDates() bool { return f.filtersDates }

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return 3 }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

var errVectorDown = errors.New("vector backend down")

func ids(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.DocID
	}
	return out
}
