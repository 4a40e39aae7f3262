// Package index provides the offline build pipeline: the Runner reads a
// corpus, upserts documents into the entity store, builds the lexical index
// and optionally embeds documents into the local vector graph.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/archivist/internal/config"
	"github.com/Aman-CERP/archivist/internal/embed"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/ingest"
	"github.com/Aman-CERP/archivist/internal/store"
	"github.com/Aman-CERP/archivist/internal/ui"
)

const defaultEmbedBatchSize = 64

// RunnerConfig configures a build.
type RunnerConfig struct {
	// Corpus is the CSV or JSONL file to build from.
	Corpus string

	// Vectors also embeds documents into the local vector graph.
	Vectors bool

	// InterBatchDelay is the pause between embedding batches.
	InterBatchDelay time.Duration
}

// RunnerResult contains the outcome of a build.
type RunnerResult struct {
	// Index is the freshly built lexical index, already saved to disk.
	Index *store.LexicalIndex

	// Report describes what ingestion accepted and skipped.
	Report *ingest.Report

	// Stored is the number of documents upserted into the entity store.
	Stored int

	// Links is the number of entity rows written for those documents.
	Links int

	// Embedded is the number of documents embedded in this run.
	Embedded int

	// Unchanged is the number of documents whose vectors were reused.
	Unchanged int

	// Removed is the number of vectors dropped because their document left the corpus.
	Removed int

	Duration time.Duration
	Warnings int
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config is the loaded configuration (required).
	Config *config.Config

	// Entities is the open entity store (required).
	Entities *store.EntityStore

	// Embedder is required only for builds with Vectors set.
	Embedder embed.Embedder

	// Tokenizer defaults to the script analyzer tokenizer.
	Tokenizer *store.Tokenizer
}

// Runner executes builds with progress reporting.
type Runner struct {
	renderer  ui.Renderer
	config    *config.Config
	entities  *store.EntityStore
	embedder  embed.Embedder
	tokenizer *store.Tokenizer
	retry     aerrors.RetryConfig
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity store is required")
	}

	tok := deps.Tokenizer
	if tok == nil {
		tok = store.NewTokenizer(nil)
	}

	retry := aerrors.DefaultRetryConfig()
	retry.Jitter = true

	return &Runner{
		renderer:  deps.Renderer,
		config:    deps.Config,
		entities:  deps.Entities,
		embedder:  deps.Embedder,
		tokenizer: tok,
		retry:     retry,
	}, nil
}

// Run executes the full build pipeline. The caller owns the renderer
// lifecycle (Start/Stop).
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	startTime := time.Now()
	var timing ui.StageTimings

	if cfg.Vectors && r.embedder == nil {
		return nil, aerrors.ConfigError("vector build requires an embeddings provider", nil)
	}
	if err := os.MkdirAll(r.config.Paths.DataDir, 0o755); err != nil {
		return nil, aerrors.StorageError("failed to create data directory", err)
	}

	// Stage 1: read
	stageStart := time.Now()
	docs, report, err := r.readCorpus(ctx, cfg.Corpus)
	if err != nil {
		return nil, err
	}
	timing.Read = time.Since(stageStart)

	// Stage 2: entity store
	stageStart = time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageStoring,
		Total:   len(docs),
		Message: "Storing documents and entity links",
	})
	links, err := r.entities.UpsertDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to store documents: %w", err)
	}
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageStoring, Current: len(docs), Total: len(docs)})
	timing.Store = time.Since(stageStart)

	// Stage 3: lexical index
	stageStart = time.Now()
	ix, err := r.buildLexical(ctx, docs)
	if err != nil {
		return nil, err
	}
	timing.Index = time.Since(stageStart)

	result := &RunnerResult{
		Index:    ix,
		Report:   report,
		Stored:   len(docs),
		Links:    links,
		Warnings: report.Skipped,
	}

	// Stage 4: vectors
	if cfg.Vectors {
		stageStart = time.Now()
		if err := r.embedDocuments(ctx, docs, cfg, result); err != nil {
			return nil, err
		}
		timing.Embed = time.Since(stageStart)
	}

	result.Duration = time.Since(startTime)
	stats := ix.Stats()

	var embedderInfo ui.EmbedderInfo
	if cfg.Vectors {
		embedderInfo = ui.EmbedderInfo{
			Provider:   r.config.Embeddings.Provider,
			Model:      r.embedder.ModelName(),
			Dimensions: r.embedder.Dimensions(),
		}
	}

	r.renderer.Complete(ui.CompletionStats{
		Documents:      stats.Documents,
		Skipped:        report.Skipped,
		Terms:          stats.Terms,
		Vectors:        result.Embedded,
		VectorsSkipped: result.Unchanged,
		Snapshot:       stats.SnapshotID,
		Duration:       result.Duration,
		Warnings:       result.Warnings,
		Stages:         timing,
		Embedder:       embedderInfo,
	})

	docsPerSec := float64(0)
	if secs := result.Duration.Seconds(); secs > 0 {
		docsPerSec = float64(stats.Documents) / secs
	}
	slog.Info("build_complete",
		slog.String("corpus", cfg.Corpus),
		slog.String("snapshot", stats.SnapshotID),
		slog.Int("documents", stats.Documents),
		slog.Int("skipped", report.Skipped),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("terms", stats.Terms),
		slog.Int("vectors_embedded", result.Embedded),
		slog.Int("vectors_unchanged", result.Unchanged),
		slog.Int("vectors_removed", result.Removed),
		slog.String("duration_total", result.Duration.String()),
		slog.Int64("duration_read_ms", timing.Read.Milliseconds()),
		slog.Int64("duration_store_ms", timing.Store.Milliseconds()),
		slog.Int64("duration_index_ms", timing.Index.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.Embed.Milliseconds()),
		slog.Float64("docs_per_sec", docsPerSec))

	return result, nil
}

func (r *Runner) readCorpus(ctx context.Context, path string) ([]*store.Document, *ingest.Report, error) {
	name := filepath.Base(path)
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageReading,
		Message: fmt.Sprintf("Reading %s", name),
	})
	slog.Info("build_read_started", slog.String("path", path))

	docs, report, err := ingest.ReadFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	for _, skipErr := range report.Errors {
		r.renderer.AddError(ui.ErrorEvent{Item: name, Err: skipErr, IsWarn: true})
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageReading,
		Current: report.Accepted,
		Total:   report.Rows,
	})
	slog.Info("build_read_complete",
		slog.Int("rows", report.Rows),
		slog.Int("accepted", report.Accepted),
		slog.Int("skipped", report.Skipped),
		slog.Int("duplicates", report.Duplicates))
	return docs, report, nil
}

func (r *Runner) buildLexical(ctx context.Context, docs []*store.Document) (*store.LexicalIndex, error) {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Total:   len(docs),
		Message: "Tokenizing documents",
	})

	input := make([]store.IndexDocument, len(docs))
	for i, d := range docs {
		input[i] = store.NewIndexDocument(d)
	}

	ix, err := store.BuildLexicalIndex(ctx, input, store.BuildOptions{
		Params:    store.BM25Params{K1: r.config.BM25.K1, B: r.config.BM25.B},
		Tokenizer: r.tokenizer,
		Workers:   r.config.Build.Workers,
		Progress: func(done, total int) {
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Current: done,
				Total:   total,
			})
		},
	})
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrCodeIndexFailed, err)
	}

	if err := ix.SaveFile(r.config.LexicalIndexPath()); err != nil {
		return nil, aerrors.StorageError("failed to save lexical index", err)
	}
	return ix, nil
}

// embedDocuments brings the vector graph in line with docs. Documents whose
// embedding text hash is unchanged keep their vectors; the graph is saved
// after every batch so an interrupted build resumes where it stopped.
func (r *Runner) embedDocuments(ctx context.Context, docs []*store.Document, cfg RunnerConfig, result *RunnerResult) error {
	path := r.config.VectorGraphPath()
	graph, err := r.openGraph(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := graph.Close(); err != nil {
			slog.Warn("vector_graph_close_failed", slog.String("error", err.Error()))
		}
	}()

	live := make(map[string]struct{}, len(docs))
	var pending []*store.Document
	var hashes []string
	for _, d := range docs {
		live[d.ID] = struct{}{}
		h := hashString(d.EmbeddingText())
		if old, ok := graph.Hash(d.ID); ok && old == h {
			result.Unchanged++
			continue
		}
		pending = append(pending, d)
		hashes = append(hashes, h)
	}

	var stale []string
	for _, id := range graph.IDs() {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		graph.Delete(stale)
		result.Removed = len(stale)
	}

	batchSize := r.config.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageEmbedding,
		Total:   len(pending),
		Message: fmt.Sprintf("Embedding with %s", r.embedder.ModelName()),
	})
	slog.Info("build_embed_started",
		slog.Int("pending", len(pending)),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("removed", len(stale)),
		slog.String("model", r.embedder.ModelName()))

	for start := 0; start < len(pending); start += batchSize {
		if err := ctx.Err(); err != nil {
			r.saveGraph(graph, path)
			slog.Info("build_interrupted",
				slog.Int("embedded", result.Embedded),
				slog.Int("total", len(pending)))
			return err
		}

		end := min(start+batchSize, len(pending))
		batch := pending[start:end]
		ids := make([]string, len(batch))
		texts := make([]string, len(batch))
		for i, d := range batch {
			ids[i] = d.ID
			texts[i] = d.EmbeddingText()
		}

		vectors, err := aerrors.RetryWithResult(ctx, r.retry, func() ([][]float32, error) {
			return r.embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			r.saveGraph(graph, path)
			return aerrors.New(aerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("failed to embed documents %d-%d", start, end-1), err)
		}
		if err := graph.Add(ctx, ids, vectors, hashes[start:end]); err != nil {
			r.saveGraph(graph, path)
			return fmt.Errorf("failed to add vectors: %w", err)
		}
		result.Embedded += len(batch)

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageEmbedding,
			Current: end,
			Total:   len(pending),
			Item:    batch[len(batch)-1].ID,
		})

		if cfg.InterBatchDelay > 0 && end < len(pending) {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.InterBatchDelay):
			}
		}
	}

	if err := graph.Save(path); err != nil {
		return aerrors.StorageError("failed to save vector graph", err)
	}
	return nil
}

// openGraph loads the existing graph when it was built by the same model at
// the same dimensions; otherwise it starts an empty one.
func (r *Runner) openGraph(path string) (*store.HNSWStore, error) {
	dims := r.embedder.Dimensions()
	model := r.embedder.ModelName()

	if _, err := os.Stat(path); err == nil {
		graph, err := store.LoadHNSWStore(path)
		if err != nil {
			slog.Warn("vector_graph_reset",
				slog.String("reason", "unreadable"),
				slog.String("error", err.Error()))
		} else if c := graph.Config(); c.Dimensions != dims || c.Model != model {
			slog.Warn("vector_graph_reset",
				slog.String("reason", "embedder_changed"),
				slog.String("old_model", c.Model),
				slog.String("new_model", model),
				slog.Int("old_dimensions", c.Dimensions),
				slog.Int("new_dimensions", dims))
			_ = graph.Close()
		} else {
			return graph, nil
		}
	}

	graph, err := store.NewHNSWStore(store.VectorGraphConfig{Dimensions: dims, Model: model})
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrCodeIndexFailed, err)
	}
	return graph, nil
}

func (r *Runner) saveGraph(graph *store.HNSWStore, path string) {
	if err := graph.Save(path); err != nil {
		slog.Warn("vector_graph_save_failed", slog.String("error", err.Error()))
	}
}

// hashString returns the hex SHA-256 of s.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
