package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/panjf2000/ants/v2"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// IndexDocument is the build input: the text to score plus the metadata
// returned with hits.
type IndexDocument struct {
	Meta DocMeta
	Text string
}

// NewIndexDocument prepares a corpus document for indexing.
func NewIndexDocument(d *Document) IndexDocument {
	return IndexDocument{Meta: d.Meta(), Text: d.IndexText()}
}

// BuildOptions configures BuildLexicalIndex.
type BuildOptions struct {
	Params    BM25Params
	Tokenizer *Tokenizer
	// Workers is the tokenization pool size. Zero uses GOMAXPROCS.
	Workers int
	// Progress, if set, is called as documents finish tokenizing.
	// It may be called from several goroutines.
	Progress func(done, total int)
}

// termFreq is a term with its frequency in one document, in first-seen order.
type termFreq struct {
	term string
	tf   uint32
}

type tokenized struct {
	terms  []termFreq
	length uint32
}

// BuildLexicalIndex builds an index over docs. Document ordinals follow
// input order; a repeated id keeps its first occurrence. Tokenization runs
// on a worker pool and results are merged in a single serial pass, so the
// same input always yields the same index.
func BuildLexicalIndex(ctx context.Context, docs []IndexDocument, opts BuildOptions) (*LexicalIndex, error) {
	if opts.Params == (BM25Params{}) {
		opts.Params = DefaultBM25Params()
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = NewTokenizer(nil)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	docs = dedupeDocs(docs)

	results, err := tokenizeAll(ctx, docs, opts.Tokenizer, workers, opts.Progress)
	if err != nil {
		return nil, err
	}

	ix := merge(docs, results)
	ix.params = opts.Params
	ix.tokenizer = opts.Tokenizer
	ix.builtAt = time.Now().UTC()
	ix.snapshotID = ulid.Make().String()
	ix.finalize()

	slog.Info("lexical_index_built",
		slog.String("snapshot_id", ix.snapshotID),
		slog.Int("docs", len(ix.docs)),
		slog.Int("terms", len(ix.terms)),
		slog.Int("postings", len(ix.postings)),
		slog.Int("workers", workers),
		slog.Duration("duration", time.Since(start)))

	return ix, nil
}

func dedupeDocs(docs []IndexDocument) []IndexDocument {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		if _, dup := seen[d.Meta.ID]; dup {
			slog.Warn("lexical_duplicate_doc_skipped", slog.String("doc_id", d.Meta.ID))
			continue
		}
		seen[d.Meta.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// tokenizeAll tokenizes every document on an ants pool. Each worker writes
// only its own slot of the result slice.
func tokenizeAll(ctx context.Context, docs []IndexDocument, tok *Tokenizer, workers int, progress func(done, total int)) ([]tokenized, error) {
	results := make([]tokenized, len(docs))
	if len(docs) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeIndexFailed, "create tokenizer pool", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for i := range docs {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[i] = countTerms(tok.Tokenize(docs[i].Text))
			if progress != nil {
				progress(int(done.Add(1)), len(docs))
			}
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, aerrors.New(aerrors.ErrCodeIndexFailed, fmt.Sprintf("submit document %d", i), err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func countTerms(tokens []string) tokenized {
	pos := make(map[string]int, len(tokens))
	terms := make([]termFreq, 0, len(tokens))
	for _, t := range tokens {
		if i, ok := pos[t]; ok {
			terms[i].tf++
			continue
		}
		pos[t] = len(terms)
		terms = append(terms, termFreq{term: t, tf: 1})
	}
	return tokenized{terms: terms, length: uint32(len(tokens))}
}

// merge assigns term ids in first-seen order and lays postings out flat.
// Two passes: count document frequencies, then fill each term's slice of
// the postings arena in ordinal order.
func merge(docs []IndexDocument, results []tokenized) *LexicalIndex {
	ix := &LexicalIndex{
		termIDs: make(map[string]uint32),
		docs:    make([]DocMeta, len(docs)),
		docLens: make([]uint32, len(docs)),
	}

	var total uint64
	for ord, r := range results {
		ix.docs[ord] = docs[ord].Meta
		ix.docLens[ord] = r.length
		total += uint64(r.length)
		for _, tf := range r.terms {
			id, ok := ix.termIDs[tf.term]
			if !ok {
				id = uint32(len(ix.terms))
				ix.termIDs[tf.term] = id
				ix.terms = append(ix.terms, tf.term)
				ix.df = append(ix.df, 0)
			}
			ix.df[id]++
		}
	}

	ix.offsets = make([]uint32, len(ix.terms)+1)
	for id, df := range ix.df {
		ix.offsets[id+1] = ix.offsets[id] + df
	}

	ix.postings = make([]Posting, ix.offsets[len(ix.terms)])
	cursor := make([]uint32, len(ix.terms))
	copy(cursor, ix.offsets[:len(ix.terms)])
	for ord, r := range results {
		for _, tf := range r.terms {
			id := ix.termIDs[tf.term]
			ix.postings[cursor[id]] = Posting{Doc: uint32(ord), TF: tf.tf}
			cursor[id]++
		}
	}

	if len(docs) > 0 {
		ix.avgDocLen = float64(total) / float64(len(docs))
	}
	return ix
}
