package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archivist/internal/config"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/index"
	"github.com/Aman-CERP/archivist/internal/store"
	"github.com/Aman-CERP/archivist/internal/ui"
)

type buildOptions struct {
	vectors bool
	plain   bool
	noColor bool
}

// buildSummary is the JSON form of a finished build.
type buildSummary struct {
	Corpus     string  `json:"corpus"`
	Snapshot   string  `json:"snapshot"`
	Documents  int     `json:"documents"`
	Stored     int     `json:"stored"`
	Links      int     `json:"entity_links"`
	Skipped    int     `json:"skipped"`
	Duplicates int     `json:"duplicates"`
	Terms      int     `json:"terms"`
	Embedded   int     `json:"vectors_embedded"`
	Unchanged  int     `json:"vectors_unchanged"`
	Removed    int     `json:"vectors_removed"`
	Seconds    float64 `json:"duration_seconds"`
}

func newBuildCmd(g *globalOptions) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build [corpus]",
		Short: "Build the lexical index and entity store from a corpus",
		Long: `Read a CSV or JSONL corpus, store documents and entity links in the
entity database, and build the BM25 lexical index.

With --vectors, documents are also embedded into the local vector graph
using the configured embeddings provider. Unchanged documents are not
re-embedded.

The corpus defaults to paths.corpus from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			corpus := cfg.Paths.Corpus
			if len(args) > 0 {
				corpus = args[0]
			}
			if corpus == "" {
				return aerrors.ValidationError("no corpus given", nil).
					WithSuggestion("Pass a CSV or JSONL file or set paths.corpus in .archivist.yaml")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, cmd, g, cfg, corpus, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.vectors, "vectors", false, "Also embed documents into the local vector graph")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, g *globalOptions, cfg *config.Config, corpus string, opts *buildOptions) error {
	out, err := g.writer(cmd)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return aerrors.StorageError("failed to create data directory", err)
	}
	lock := store.NewBuildLock(cfg.LockPath())
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	entities, err := store.OpenEntityStore(cfg.EntityDBPath())
	if err != nil {
		return err
	}
	defer func() { _ = entities.Close() }()

	deps := index.RunnerDependencies{Config: cfg, Entities: entities}
	if opts.vectors {
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return err
		}
		if embedder != nil {
			defer func() { _ = embedder.Close() }()
			deps.Embedder = embedder
		}
	}

	if out.IsJSON() {
		deps.Renderer = ui.NopRenderer{}
	} else {
		deps.Renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.plain),
			ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
			ui.WithTitle("archivist build")))
	}

	runner, err := index.NewRunner(deps)
	if err != nil {
		return aerrors.InternalError("failed to create build runner", err)
	}

	if err := deps.Renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	result, runErr := runner.Run(ctx, index.RunnerConfig{
		Corpus:  corpus,
		Vectors: opts.vectors,
	})
	_ = deps.Renderer.Stop()
	if runErr != nil {
		slog.LogAttrs(ctx, slog.LevelError, "build_failed", aerrors.LogAttrs(runErr)...)
		return runErr
	}

	stats := result.Index.Stats()
	summary := buildSummary{
		Corpus:     corpus,
		Snapshot:   stats.SnapshotID,
		Documents:  stats.Documents,
		Stored:     result.Stored,
		Links:      result.Links,
		Skipped:    result.Report.Skipped,
		Duplicates: result.Report.Duplicates,
		Terms:      stats.Terms,
		Embedded:   result.Embedded,
		Unchanged:  result.Unchanged,
		Removed:    result.Removed,
		Seconds:    result.Duration.Round(time.Millisecond).Seconds(),
	}
	return out.Result(summary, "")
}
