package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per update (for CI and pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage
	msg := event.Message
	if msg == "" {
		msg = event.Item
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)
	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Item != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Item, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round := func(d time.Duration) time.Duration { return d.Round(100 * time.Millisecond) }

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents, %d terms indexed in %s",
		stats.Documents, stats.Terms, round(stats.Duration))
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d skipped)", stats.Skipped)
	}
	_, _ = fmt.Fprintln(r.out)
	if stats.Snapshot != "" {
		_, _ = fmt.Fprintf(r.out, "Snapshot: %s\n", stats.Snapshot)
	}

	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
	_, _ = fmt.Fprintf(r.out, "  Read:  %s\n", round(stats.Stages.Read))
	_, _ = fmt.Fprintf(r.out, "  Store: %s\n", round(stats.Stages.Store))
	_, _ = fmt.Fprintf(r.out, "  Index: %s\n", round(stats.Stages.Index))
	if stats.Stages.Embed > 0 {
		_, _ = fmt.Fprintf(r.out, "  Embed: %s (%d embedded, %d unchanged)\n",
			round(stats.Stages.Embed), stats.Vectors, stats.VectorsSkipped)
	}

	if stats.Embedder.Model != "" {
		_, _ = fmt.Fprintf(r.out, "\nEmbedder: %s (%s, %d dims)\n",
			stats.Embedder.Provider, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
