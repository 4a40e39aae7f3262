// Package cmd provides the CLI commands for archivist.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archivist/internal/config"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/logging"
	"github.com/Aman-CERP/archivist/internal/output"
	"github.com/Aman-CERP/archivist/pkg/version"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	debug   bool
	dataDir string
	format  string

	loggingCleanup func()
}

// NewRootCmd creates the root command for the archivist CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "archivist",
		Short: "Hybrid search and entity analytics over a Korean news archive",
		Long: `archivist indexes an entity-annotated news corpus and answers
hybrid (BM25 + semantic) search, entity timeline, keyword trend and
source queries, from the command line or as a stdio tool server.

Build the index once, then query it:
  archivist build news.csv
  archivist search "반도체 수출"
  archivist timeline 윤석열 --granularity week`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("archivist version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to stderr and ~/.archivist/logs/")
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Data directory (overrides config and ARCHIVIST_DATA_DIR)")
	cmd.PersistentFlags().StringVarP(&g.format, "format", "f", "text", "Output format: text, json")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		// serve configures its own logging: stdout and stderr belong to the protocol.
		if c.Name() == "serve" && !g.debug {
			return nil
		}
		return g.startLogging()
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		g.stopLogging()
		return nil
	}

	cmd.AddCommand(newBuildCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newTimelineCmd(g))
	cmd.AddCommand(newTrendCmd(g))
	cmd.AddCommand(newSourceCmd(g))
	cmd.AddCommand(newEntityCmd(g))
	cmd.AddCommand(newDailyCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints errors in CLI form.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, aerrors.FormatForCLI(err))
	}
	return err
}

func (g *globalOptions) startLogging() error {
	cfg := logging.DefaultConfig()
	if g.debug {
		cfg = logging.DebugConfig()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		if g.debug {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		// File logging is best effort for normal runs.
		return nil
	}
	g.loggingCleanup = cleanup
	if g.debug {
		slog.Debug("debug_logging_enabled", slog.String("log_file", cfg.FilePath))
	}
	return nil
}

func (g *globalOptions) stopLogging() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// loadConfig loads configuration for the working directory and applies
// the persistent flag overrides.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		dir = ""
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, aerrors.ConfigError("failed to load configuration", err)
	}
	if g.dataDir != "" {
		cfg.Paths.DataDir = g.dataDir
	}
	return cfg, nil
}

// writer returns an output writer for the --format flag.
func (g *globalOptions) writer(cmd *cobra.Command) (*output.Writer, error) {
	f, err := output.ParseFormat(g.format)
	if err != nil {
		return nil, aerrors.ValidationError(err.Error(), nil)
	}
	return output.NewWithFormat(cmd.OutOrStdout(), f), nil
}
