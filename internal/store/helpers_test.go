package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// taggedAnalyzer reads "form/TAG" pairs separated by spaces.
var taggedAnalyzer = MorphAnalyzerFunc(func(text string) []Morpheme {
	var out []Morpheme
	for _, field := range strings.Fields(text) {
		form, tag, ok := strings.Cut(field, "/")
		if !ok {
			tag = "NNG"
		}
		out = append(out, Morpheme{Form: form, Tag: tag})
	}
	return out
})

// wordAnalyzer tags every whitespace-separated word as a common noun.
var wordAnalyzer = MorphAnalyzerFunc(func(text string) []Morpheme {
	var out []Morpheme
	for _, f := range strings.Fields(text) {
		out = append(out, Morpheme{Form: f, Tag: "NNG"})
	}
	return out
})

func buildIndex(t *testing.T, docs ...IndexDocument) *LexicalIndex {
	t.Helper()
	ix, err := BuildLexicalIndex(context.Background(), docs, BuildOptions{
		Tokenizer: NewTokenizer(wordAnalyzer),
		Workers:   2,
	})
	require.NoError(t, err)
	return ix
}

func doc(id, date, text string) IndexDocument {
	return IndexDocument{Meta: DocMeta{ID: id, Date: date, Title: id}, Text: text}
}

func newTestStore(t *testing.T) *EntityStore {
	t.Helper()
	s, err := OpenEntityStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
