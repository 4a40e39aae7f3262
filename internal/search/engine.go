package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/archivist/internal/embed"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/store"
)

// vectorOverfetch widens the vector request when the adapter cannot filter
// dates itself and the post-filter will drop some hits.
const vectorOverfetch = 4

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine is the hybrid search engine. The lexical index is held behind an
// atomic pointer: a rebuild constructs a new index off to the side and
// SwapIndex publishes it, so in-flight queries keep the snapshot they
// loaded and never observe a partial index.
type Engine struct {
	index    atomic.Pointer[store.LexicalIndex]
	entities *store.EntityStore
	vector   *VectorAdapter
	fusion   *RRFFusion
	config   EngineConfig

	searcher VectorSearcher
	embedder embed.Embedder
}

var _ Service = (*Engine)(nil)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithIndex publishes ix as the initial lexical index.
func WithIndex(ix *store.LexicalIndex) EngineOption {
	return func(e *Engine) {
		if ix != nil {
			e.index.Store(ix)
		}
	}
}

// WithVectorSearcher enables the semantic side. Both arguments are required;
// if either is nil the engine runs lexical-only.
func WithVectorSearcher(searcher VectorSearcher, embedder embed.Embedder) EngineOption {
	return func(e *Engine) {
		e.searcher = searcher
		e.embedder = embedder
	}
}

// NewEngine creates an engine over entities. The lexical index may be
// supplied later with SwapIndex.
func NewEngine(entities *store.EntityStore, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if entities == nil {
		return nil, fmt.Errorf("%w: entity store is required", ErrNilDependency)
	}
	config = config.withDefaults()
	if config.Weights.Lexical < 0 || config.Weights.Vector < 0 {
		return nil, aerrors.ConfigError("fusion weights must be non-negative", nil)
	}

	e := &Engine{
		entities: entities,
		fusion:   NewRRFFusion(config.RRFConstant),
		config:   config,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.searcher != nil && e.embedder != nil {
		breaker := aerrors.NewCircuitBreaker("vector",
			aerrors.WithMaxFailures(config.BreakerFailures),
			aerrors.WithResetTimeout(config.BreakerReset))
		e.vector = NewVectorAdapter(e.searcher, e.embedder, config.VectorTimeout, breaker)
	}
	return e, nil
}

// Index returns the current lexical index, or nil before the first build.
func (e *Engine) Index() *store.LexicalIndex {
	return e.index.Load()
}

// SwapIndex atomically publishes ix and returns the index it replaced.
func (e *Engine) SwapIndex(ix *store.LexicalIndex) *store.LexicalIndex {
	old := e.index.Swap(ix)
	attrs := []any{slog.String("snapshot", snapshotOf(ix)), slog.Int("documents", ix.Len())}
	if old != nil {
		attrs = append(attrs, slog.String("previous", old.SnapshotID()))
	}
	slog.Info("lexical_index_swapped", attrs...)
	return old
}

func snapshotOf(ix *store.LexicalIndex) string {
	if ix == nil {
		return ""
	}
	return ix.SnapshotID()
}

// Entities returns the entity store.
func (e *Engine) Entities() *store.EntityStore {
	return e.entities
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Stats describes the loaded index and the vector adapter.
func (e *Engine) Stats() EngineStats {
	st := EngineStats{VectorActive: e.vector != nil}
	if ix := e.index.Load(); ix != nil {
		s := ix.Stats()
		st.Index = &s
	}
	if b := e.vector.Breaker(); b != nil {
		st.CircuitState = b.State().String()
	}
	return st
}

// Search runs query against the lexical index and, when configured, the
// vector adapter in parallel, fuses both rankings and returns the best
// opts.TopK documents. An empty query or an inverted date range yields no
// results. A vector failure degrades to lexical-only results.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	start := time.Now()

	ix := e.index.Load()
	if ix == nil {
		return nil, aerrors.IndexNotBuilt()
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.config.TopK
	}
	if !opts.Dates.Valid() || len(ix.Tokenizer().Tokenize(query)) == 0 {
		return []SearchResult{}, nil
	}
	initialK := max(e.config.InitialK, topK)
	entity := strings.TrimSpace(opts.Entity)
	useVector := e.vector != nil && !opts.LexicalOnly && e.config.Weights.Vector > 0

	var (
		lexHits []store.LexicalHit
		vecHits []VectorHit
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := e.lexicalSearch(ix, query, initialK, opts.Dates, entity)
		if err != nil {
			return err
		}
		lexHits = hits
		return nil
	})

	if useVector {
		g.Go(func() error {
			fetch := initialK
			if !opts.Dates.IsZero() && !e.vector.FiltersDates() {
				fetch *= vectorOverfetch
			}
			hits, err := e.vector.Search(gctx, query, fetch, VectorFilter{Dates: opts.Dates, Entity: entity})
			if err != nil {
				// Degrade to lexical-only.
				attrs := append([]slog.Attr{slog.String("query", query)}, aerrors.LogAttrs(err)...)
				slog.LogAttrs(gctx, slog.LevelWarn, "vector_search_failed", attrs...)
				return nil
			}
			vecHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lexIDs := make([]string, len(lexHits))
	lexScore := make(map[string]float64, len(lexHits))
	for i, h := range lexHits {
		lexIDs[i] = h.DocID
		lexScore[h.DocID] = h.Score
	}
	vecIDs := make([]string, len(vecHits))
	vecSim := make(map[string]float64, len(vecHits))
	for i, h := range vecHits {
		vecIDs[i] = h.DocID
		if _, ok := vecSim[h.DocID]; !ok {
			vecSim[h.DocID] = h.Similarity
		}
	}

	fused := e.fusion.Fuse(
		RankedList{Source: SourceLexical, Weight: e.config.Weights.Lexical, IDs: lexIDs},
		RankedList{Source: SourceVector, Weight: e.config.Weights.Vector, IDs: vecIDs},
	)

	metas, err := e.resolve(ctx, ix, fused)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, min(topK, len(fused)))
	for _, c := range fused {
		if len(results) == topK {
			break
		}
		meta, ok := metas[c.DocID]
		if !ok {
			slog.Debug("search_unknown_document", slog.String("doc_id", c.DocID))
			continue
		}
		if !opts.Dates.Contains(meta.Date) {
			continue
		}
		if entity != "" && !matchesEntity(meta, entity) {
			continue
		}
		results = append(results, newResult(c, meta, lexScore, vecSim))
	}

	slog.Debug("search_completed",
		slog.String("query", query),
		slog.Int("lexical", len(lexHits)),
		slog.Int("vector", len(vecHits)),
		slog.Int("results", len(results)),
		slog.Duration("latency", time.Since(start)))

	return results, nil
}

// lexicalSearch returns up to k lexical hits. With an entity filter the
// index is scanned in full and filtered before truncation so that ranks are
// ranks among admissible documents.
func (e *Engine) lexicalSearch(ix *store.LexicalIndex, query string, k int, dates store.DateRange, entity string) ([]store.LexicalHit, error) {
	if entity == "" {
		return ix.Search(query, k, dates)
	}
	all, err := ix.Search(query, 0, dates)
	if err != nil {
		return nil, err
	}
	out := make([]store.LexicalHit, 0, min(k, len(all)))
	for _, h := range all {
		if matchesEntity(ix.Doc(h.Ordinal), entity) {
			out = append(out, h)
			if len(out) == k {
				break
			}
		}
	}
	return out, nil
}

// resolve finds the metadata of every candidate, from the index first and
// the entity store for documents the index does not hold.
func (e *Engine) resolve(ctx context.Context, ix *store.LexicalIndex, fused []*FusionCandidate) (map[string]*store.DocMeta, error) {
	metas := make(map[string]*store.DocMeta, len(fused))
	var missing []string
	for _, c := range fused {
		if m, ok := ix.Lookup(c.DocID); ok {
			metas[c.DocID] = m
			continue
		}
		missing = append(missing, c.DocID)
	}
	if len(missing) == 0 {
		return metas, nil
	}

	docs, err := e.entities.GetDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		m := d.Meta()
		metas[d.ID] = &m
	}
	return metas, nil
}

func newResult(c *FusionCandidate, meta *store.DocMeta, lexScore, vecSim map[string]float64) SearchResult {
	r := SearchResult{
		DocID:         c.DocID,
		Score:         c.Score,
		Date:          meta.Date,
		Title:         meta.Title,
		Content:       meta.Content,
		Persons:       meta.Persons,
		Organizations: meta.Organizations,
		Concepts:      meta.Concepts,
		LexicalScore:  lexScore[c.DocID],
		Similarity:    vecSim[c.DocID],
	}
	if rank := c.Rank(SourceLexical); rank >= 0 {
		r.LexicalRank = rank + 1
	}
	if rank := c.Rank(SourceVector); rank >= 0 {
		r.VectorRank = rank + 1
	}
	return r
}

// EntityTimeline buckets documents mentioning entity. Granularity defaults to month.
func (e *Engine) EntityTimeline(ctx context.Context, entity string, dates store.DateRange, g store.Granularity) ([]store.TimelineBucket, error) {
	if g == "" {
		g = store.GranularityMonth
	}
	return e.entities.EntityTimeline(ctx, store.TimelineQuery{Entity: entity, Dates: dates, Granularity: g})
}

// Trend reports keyword frequency over time. Granularity defaults to month.
func (e *Engine) Trend(ctx context.Context, keyword string, dates store.DateRange, g store.Granularity) (*store.TrendReport, error) {
	if g == "" {
		g = store.GranularityMonth
	}
	return e.entities.Trend(ctx, store.TrendQuery{Keyword: keyword, Dates: dates, Granularity: g})
}

// SearchBySource lists documents attributed to media, optionally on topic.
func (e *Engine) SearchBySource(ctx context.Context, media, topic string, dates store.DateRange) ([]store.DocumentSummary, error) {
	return e.entities.SearchBySource(ctx, store.SourceQuery{Media: media, Topic: topic, Dates: dates})
}

// SearchByEntity lists documents linked to an entity of an optional type.
func (e *Engine) SearchByEntity(ctx context.Context, name string, typ store.EntityType, dates store.DateRange, limit int) ([]store.DocumentSummary, error) {
	return e.entities.SearchByEntity(ctx, store.EntityQuery{Name: name, Type: typ, Dates: dates, Limit: limit})
}

// DailySummary describes one day of the corpus.
func (e *Engine) DailySummary(ctx context.Context, date string) (*store.DailySummary, error) {
	return e.entities.DailySummary(ctx, date)
}

// Document returns one stored document, or nil if id is unknown.
func (e *Engine) Document(ctx context.Context, id string) (*store.Document, error) {
	docs, err := e.entities.GetDocuments(ctx, []string{id})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Embedder returns the query embedder, or nil when running lexical-only.
func (e *Engine) Embedder() embed.Embedder {
	if e.vector == nil {
		return nil
	}
	return e.embedder
}

// StoreStats reports entity store totals.
func (e *Engine) StoreStats(ctx context.Context) (store.StoreStats, error) {
	return e.entities.Stats(ctx)
}
