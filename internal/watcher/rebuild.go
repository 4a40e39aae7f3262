package watcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/archivist/internal/store"
)

// BuildFunc produces a new lexical index from the current corpus.
type BuildFunc func(ctx context.Context) (*store.LexicalIndex, error)

// IndexSwapper publishes a new index and returns the previous one.
type IndexSwapper interface {
	SwapIndex(ix *store.LexicalIndex) *store.LexicalIndex
}

// Rebuilder runs one build at a time and swaps each result into the target.
// A failed build leaves the current index in place.
type Rebuilder struct {
	build  BuildFunc
	target IndexSwapper

	mu       sync.Mutex
	rebuilds atomic.Uint64
	failures atomic.Uint64
}

// NewRebuilder creates a Rebuilder.
func NewRebuilder(build BuildFunc, target IndexSwapper) *Rebuilder {
	return &Rebuilder{build: build, target: target}
}

// Rebuild builds and swaps once. Concurrent calls are serialized.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	slog.Info("corpus_rebuild_started")

	ix, err := r.build(ctx)
	if err != nil {
		r.failures.Add(1)
		slog.Error("corpus_rebuild_failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	old := r.target.SwapIndex(ix)
	r.rebuilds.Add(1)

	oldSnapshot := ""
	if old != nil {
		oldSnapshot = old.SnapshotID()
	}
	slog.Info("corpus_rebuild_complete",
		slog.String("old_snapshot", oldSnapshot),
		slog.String("new_snapshot", ix.SnapshotID()),
		slog.Int("documents", ix.Len()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Run rebuilds on every batch until ctx is canceled or events is closed.
// Batches in which the corpus ends up deleted are skipped: the served index
// stays as it is until the file comes back. Build errors are logged and do
// not stop the loop.
func (r *Rebuilder) Run(ctx context.Context, events <-chan []FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if !needsRebuild(batch) {
				slog.Warn("corpus_removed_keeping_index", slog.Int("events", len(batch)))
				continue
			}
			_ = r.Rebuild(ctx)
		}
	}
}

// needsRebuild reports whether any event in batch leaves a file in place.
func needsRebuild(batch []FileEvent) bool {
	for _, e := range batch {
		if !e.Operation.gone() {
			return true
		}
	}
	return false
}

// Stats returns the number of successful and failed rebuilds.
func (r *Rebuilder) Stats() (rebuilds, failures uint64) {
	return r.rebuilds.Load(), r.failures.Load()
}
