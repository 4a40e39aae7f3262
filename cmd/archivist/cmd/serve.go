package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/archivist/internal/config"
	"github.com/Aman-CERP/archivist/internal/index"
	"github.com/Aman-CERP/archivist/internal/logging"
	"github.com/Aman-CERP/archivist/internal/mcp"
	"github.com/Aman-CERP/archivist/internal/store"
	"github.com/Aman-CERP/archivist/internal/ui"
	"github.com/Aman-CERP/archivist/internal/watcher"
)

type serveOptions struct {
	watch  bool
	corpus string
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive as MCP tools over stdio",
		Long: `Start an MCP server on stdio exposing search, entity timeline, keyword
trend, source, entity and daily summary tools.

With --watch, the corpus file is watched and the lexical index is rebuilt
and swapped in after each change. Queries in flight keep the index they
started with.

Logs go to ~/.archivist/logs/ only: stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if opts.corpus != "" {
				cfg.Paths.Corpus = opts.corpus
			}

			if !g.debug {
				cleanup, err := logging.SetupDefault(logging.ServeConfig(cfg.Server.LogLevel))
				if err == nil {
					defer cleanup()
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild the index when the corpus changes")
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "Corpus file (overrides paths.corpus)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, opts *serveOptions) error {
	corpus := cfg.Paths.Corpus
	if !exists(cfg.LexicalIndexPath()) && corpus != "" && exists(corpus) {
		slog.Info("initial_build", slog.String("corpus", corpus))
		if _, err := buildLexicalOnly(ctx, cfg, nil, corpus); err != nil {
			return err
		}
	}

	a, err := openApp(cfg, openOptions{requireIndex: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := mcp.NewServer(a.engine)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		// The client closing stdin ends the session and stops the watcher.
		defer cancel()
		return srv.Serve(gctx, cfg.Server.Transport)
	})

	if opts.watch {
		if corpus == "" {
			slog.Warn("watch_disabled", slog.String("reason", "no corpus configured"))
		} else {
			w, err := watcher.NewCorpusWatcher(corpus, watcher.Options{DebounceWindow: cfg.WatchDebounceDuration()})
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			rb := watcher.NewRebuilder(func(ctx context.Context) (*store.LexicalIndex, error) {
				return buildLexicalOnly(ctx, cfg, a.entities, corpus)
			}, a.engine)

			grp.Go(func() error { return ignoreCanceled(w.Start(gctx)) })
			grp.Go(func() error { return ignoreCanceled(rb.Run(gctx, w.Events())) })
			grp.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case err, ok := <-w.Errors():
						if !ok {
							return nil
						}
						slog.Warn("watcher_error", slog.String("error", err.Error()))
					}
				}
			})
		}
	}

	return ignoreCanceled(grp.Wait())
}

// buildLexicalOnly runs a build without vectors under the build lock and
// returns the new lexical index. A nil entities opens the store for the
// duration of the build.
func buildLexicalOnly(ctx context.Context, cfg *config.Config, entities *store.EntityStore, corpus string) (*store.LexicalIndex, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, err
	}
	lock := store.NewBuildLock(cfg.LockPath())
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if entities == nil {
		es, err := store.OpenEntityStore(cfg.EntityDBPath())
		if err != nil {
			return nil, err
		}
		defer func() { _ = es.Close() }()
		entities = es
	}

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: ui.NopRenderer{},
		Config:   cfg,
		Entities: entities,
	})
	if err != nil {
		return nil, err
	}
	result, err := runner.Run(ctx, index.RunnerConfig{Corpus: corpus})
	if err != nil {
		return nil, err
	}
	return result.Index, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
