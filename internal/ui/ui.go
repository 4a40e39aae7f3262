// Package ui renders build progress and index status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one step of a corpus build.
type Stage int

const (
	// StageReading parses the corpus file.
	StageReading Stage = iota
	// StageStoring upserts documents and entity links.
	StageStoring
	// StageIndexing tokenizes documents and builds the lexical index.
	StageIndexing
	// StageEmbedding embeds changed documents into the vector graph.
	StageEmbedding
	// StageComplete marks the end of the build.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageReading:
		return "Reading"
	case StageStoring:
		return "Storing"
	case StageIndexing:
		return "Indexing"
	case StageEmbedding:
		return "Embedding"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain output.
func (s Stage) Icon() string {
	switch s {
	case StageReading:
		return "READ"
	case StageStoring:
		return "STORE"
	case StageIndexing:
		return "INDEX"
	case StageEmbedding:
		return "EMBED"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Item    string
	Message string
}

// ErrorEvent is a skipped document or failed step.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageTimings holds the duration of each build stage.
type StageTimings struct {
	Read  time.Duration
	Store time.Duration
	Index time.Duration
	Embed time.Duration
}

// EmbedderInfo describes the embedder used for the vector stage.
type EmbedderInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// CompletionStats summarizes a finished build.
type CompletionStats struct {
	Documents      int
	Skipped        int
	Terms          int
	Vectors        int
	VectorsSkipped int
	Snapshot       string
	Duration       time.Duration
	Warnings       int
	Stages         StageTimings
	Embedder       EmbedderInfo
}

// Renderer displays build progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, usually the corpus path.
	Title string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// NewConfig creates a Config for output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer on interactive terminals and a plain
// renderer for pipes, CI or when forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// NopRenderer discards all progress. Used by background rebuilds.
type NopRenderer struct{}

func (NopRenderer) Start(context.Context) error  { return nil }
func (NopRenderer) UpdateProgress(ProgressEvent) {}
func (NopRenderer) AddError(ErrorEvent)          {}
func (NopRenderer) Complete(CompletionStats)     {}
func (NopRenderer) Stop() error                  { return nil }

var _ Renderer = NopRenderer{}
