package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/archivist/internal/embed"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/store"
)

// VectorFilter carries the query's restrictions to the vector adapter.
// Adapters may ignore either field; the engine re-checks dates for adapters
// that report FiltersDates() == false and always re-checks the entity.
type VectorFilter struct {
	Dates  store.DateRange
	Entity string
}

// VectorHit is one semantic match, best first.
type VectorHit struct {
	DocID      string
	Similarity float64
}

// VectorSearcher is the external semantic index.
type VectorSearcher interface {
	SearchVectors(ctx context.Context, embedding []float32, topK int, filter VectorFilter) ([]VectorHit, error)

	// FiltersDates reports whether SearchVectors honours filter.Dates.
	FiltersDates() bool
}

// VectorAdapter embeds the query and calls a VectorSearcher under a timeout
// and a circuit breaker. Every failure is reported as ErrCodeAdapterUnavailable
// and never retried.
type VectorAdapter struct {
	searcher VectorSearcher
	embedder embed.Embedder
	timeout  time.Duration
	breaker  *aerrors.CircuitBreaker
}

// NewVectorAdapter guards searcher and embedder. A nil breaker disables
// short-circuiting.
func NewVectorAdapter(searcher VectorSearcher, embedder embed.Embedder, timeout time.Duration, breaker *aerrors.CircuitBreaker) *VectorAdapter {
	return &VectorAdapter{
		searcher: searcher,
		embedder: embedder,
		timeout:  timeout,
		breaker:  breaker,
	}
}

// FiltersDates passes through to the searcher.
func (a *VectorAdapter) FiltersDates() bool {
	return a != nil && a.searcher != nil && a.searcher.FiltersDates()
}

// Breaker returns the adapter's circuit breaker, possibly nil.
func (a *VectorAdapter) Breaker() *aerrors.CircuitBreaker {
	if a == nil {
		return nil
	}
	return a.breaker
}

// Search embeds query and returns up to topK hits.
func (a *VectorAdapter) Search(ctx context.Context, query string, topK int, filter VectorFilter) ([]VectorHit, error) {
	if a == nil || a.searcher == nil || a.embedder == nil {
		return nil, aerrors.AdapterUnavailable(errors.New("vector adapter not configured"))
	}
	if a.breaker != nil && !a.breaker.Allow() {
		return nil, aerrors.AdapterUnavailable(aerrors.ErrCircuitOpen)
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	hits, err := a.await(callCtx, query, topK, filter)
	if err != nil {
		// The caller giving up is not the adapter's fault.
		if a.breaker != nil && ctx.Err() == nil {
			a.breaker.RecordFailure()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = aerrors.New(aerrors.ErrCodeAdapterTimeout, "vector search timed out after "+a.timeout.String(), err)
		}
		return nil, aerrors.AdapterUnavailable(err)
	}
	if a.breaker != nil {
		a.breaker.RecordSuccess()
	}
	return hits, nil
}

type vectorResult struct {
	hits []VectorHit
	err  error
}

// await runs call in its own goroutine so a backend that ignores ctx cannot
// hold the query past its deadline. A late result is discarded.
func (a *VectorAdapter) await(ctx context.Context, query string, topK int, filter VectorFilter) ([]VectorHit, error) {
	done := make(chan vectorResult, 1)
	go func() {
		hits, err := a.call(ctx, query, topK, filter)
		done <- vectorResult{hits, err}
	}()
	select {
	case r := <-done:
		return r.hits, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *VectorAdapter) call(ctx context.Context, query string, topK int, filter VectorFilter) ([]VectorHit, error) {
	emb, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return a.searcher.SearchVectors(ctx, emb, topK, filter)
}

// HNSWAdapter serves vector search from a local HNSW graph. It does not
// filter by date or entity.
type HNSWAdapter struct {
	graph *store.HNSWStore
}

// NewHNSWAdapter wraps graph.
func NewHNSWAdapter(graph *store.HNSWStore) *HNSWAdapter {
	return &HNSWAdapter{graph: graph}
}

// SearchVectors implements VectorSearcher.
func (a *HNSWAdapter) SearchVectors(ctx context.Context, embedding []float32, topK int, _ VectorFilter) ([]VectorHit, error) {
	results, err := a.graph.Search(ctx, embedding, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]VectorHit, len(results))
	for i, r := range results {
		hits[i] = VectorHit{DocID: r.DocID, Similarity: float64(r.Similarity)}
	}
	slog.Debug("hnsw_search", slog.Int("requested", topK), slog.Int("returned", len(hits)))
	return hits, nil
}

// FiltersDates implements VectorSearcher.
func (a *HNSWAdapter) FiltersDates() bool { return false }
