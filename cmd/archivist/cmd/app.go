package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/archivist/internal/config"
	"github.com/Aman-CERP/archivist/internal/embed"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/search"
	"github.com/Aman-CERP/archivist/internal/store"
)

// app bundles the opened stores and the engine built over them.
type app struct {
	cfg      *config.Config
	entities *store.EntityStore
	graph    *store.HNSWStore
	engine   *search.Engine
}

// openOptions controls what openApp requires.
type openOptions struct {
	// requireIndex fails with an index-not-built error when the lexical
	// index or the entity database is missing.
	requireIndex bool

	// requireEntities fails when only the entity database is missing.
	requireEntities bool

	// lexicalOnly skips the embedder and the vector graph.
	lexicalOnly bool
}

// openApp opens the entity store, loads the lexical index and wires the
// optional vector side into a search engine.
func openApp(cfg *config.Config, opts openOptions) (*app, error) {
	lexPath := cfg.LexicalIndexPath()
	dbPath := cfg.EntityDBPath()

	if opts.requireIndex && (!exists(lexPath) || !exists(dbPath)) {
		return nil, aerrors.IndexNotBuilt()
	}
	if opts.requireEntities && !exists(dbPath) {
		return nil, aerrors.IndexNotBuilt()
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, aerrors.StorageError("failed to create data directory", err)
	}

	entities, err := store.OpenEntityStore(dbPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, entities: entities}

	var engineOpts []search.EngineOption
	if exists(lexPath) {
		ix, err := store.LoadLexicalIndexFile(lexPath, store.NewTokenizer(nil))
		if err != nil {
			a.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, search.WithIndex(ix))
	}

	if !opts.lexicalOnly {
		if opt := a.vectorOption(); opt != nil {
			engineOpts = append(engineOpts, opt)
		}
	}

	a.engine, err = search.NewEngine(entities, engineConfig(cfg), engineOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// vectorOption wires the embedder and the local vector graph. Any problem
// degrades to lexical-only search with a log line.
func (a *app) vectorOption() search.EngineOption {
	embedder, err := newEmbedder(a.cfg)
	if err != nil {
		slog.Warn("embedder_unavailable", slog.String("error", err.Error()))
		return nil
	}
	if embedder == nil {
		return nil
	}

	path := a.cfg.VectorGraphPath()
	if !exists(path) {
		slog.Debug("vector_graph_missing", slog.String("path", path))
		_ = embedder.Close()
		return nil
	}
	graph, err := store.LoadHNSWStore(path)
	if err != nil {
		slog.Warn("vector_graph_load_failed", slog.String("error", err.Error()))
		_ = embedder.Close()
		return nil
	}
	if dims := graph.Config().Dimensions; dims != embedder.Dimensions() {
		slog.Warn("vector_graph_dimension_mismatch",
			slog.Int("graph", dims),
			slog.Int("embedder", embedder.Dimensions()))
		_ = graph.Close()
		_ = embedder.Close()
		return nil
	}

	a.graph = graph
	return search.WithVectorSearcher(search.NewHNSWAdapter(graph), embedder)
}

// Close releases the stores and the embedder.
func (a *app) Close() {
	if a.engine != nil {
		if e := a.engine.Embedder(); e != nil {
			_ = e.Close()
		}
	}
	if a.graph != nil {
		_ = a.graph.Close()
	}
	if a.entities != nil {
		_ = a.entities.Close()
	}
}

// newEmbedder creates the configured embedder. It returns (nil, nil) when
// the provider is none.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, aerrors.ConfigError(err.Error(), nil)
	}
	e, err := embed.NewEmbedder(embed.Options{
		Provider: provider,
		OpenAI: embed.OpenAIConfig{
			BaseURL:    cfg.Embeddings.BaseURL,
			APIKey:     cfg.Embeddings.APIKey,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		},
		CacheSize: cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeAdapterUnavailable, fmt.Sprintf("failed to create %s embedder", provider), err)
	}
	return e, nil
}

func engineConfig(cfg *config.Config) search.EngineConfig {
	return search.EngineConfig{
		TopK:     cfg.Search.TopK,
		InitialK: cfg.Search.InitialK,
		Weights: search.Weights{
			Lexical: cfg.Search.LexicalWeight,
			Vector:  cfg.Search.VectorWeight,
		},
		RRFConstant:     cfg.Search.RRFConstant,
		VectorTimeout:   cfg.VectorTimeoutDuration(),
		BreakerFailures: cfg.Search.BreakerFailures,
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
