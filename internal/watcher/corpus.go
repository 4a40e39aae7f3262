package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CorpusWatcher emits debounced batches of changes to one corpus file.
type CorpusWatcher struct {
	path string
	opts Options

	fsWatcher *fsnotify.Watcher
	poller    *Poller
	debouncer *Debouncer

	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewCorpusWatcher creates a watcher for the corpus at path. It uses
// fsnotify unless opts.ForcePolling is set or fsnotify cannot be created.
func NewCorpusWatcher(path string, opts Options) (*CorpusWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()

	w := &CorpusWatcher{
		path:      abs,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			return w, nil
		}
		slog.Warn("watcher_fallback_polling", slog.String("error", err.Error()))
	}
	w.poller = NewPoller(abs, opts.PollInterval)
	return w, nil
}

// Start watches until ctx is canceled or Stop is called.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	go w.forwardDebouncedEvents(ctx)

	if w.fsWatcher != nil {
		// Watch the directory: exporters often replace the file, which drops
		// a watch placed on the file itself.
		if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
			slog.Warn("watcher_fallback_polling",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
			_ = w.fsWatcher.Close()
			w.mu.Lock()
			w.fsWatcher = nil
			w.poller = NewPoller(w.path, w.opts.PollInterval)
			w.mu.Unlock()
		} else {
			slog.Info("watcher_started", slog.String("path", w.path), slog.String("type", "fsnotify"))
			return w.runFsnotify(ctx)
		}
	}

	slog.Info("watcher_started", slog.String("path", w.path), slog.String("type", "polling"))
	return w.runPolling(ctx)
}

func (w *CorpusWatcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *CorpusWatcher) runPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.poller.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()
	return w.poller.Start(ctx)
}

// handleFsnotifyEvent keeps events for the corpus file only.
func (w *CorpusWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      filepath.Base(w.path),
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *CorpusWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

func (w *CorpusWatcher) emitEvents(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("watcher_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *CorpusWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops watching and closes the channels. Safe to call multiple times.
func (w *CorpusWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (w *CorpusWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *CorpusWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *CorpusWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Path returns the absolute corpus path being watched.
func (w *CorpusWatcher) Path() string {
	return w.path
}

// WatcherType returns "fsnotify" or "polling".
func (w *CorpusWatcher) WatcherType() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}
