package watcher

import (
	"time"
)

// Operation is a file system operation on the corpus.
type Operation int

const (
	// OpCreate means the corpus appeared.
	OpCreate Operation = iota
	// OpModify means the corpus was written.
	OpModify
	// OpDelete means the corpus was removed.
	OpDelete
	// OpRename means the corpus was moved away; editors and exporters
	// usually follow it with a create of the same name.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// gone reports whether op leaves the path absent.
func (op Operation) gone() bool {
	return op == OpDelete || op == OpRename
}

// FileEvent is one change to a watched file.
type FileEvent struct {
	// Path is the file name relative to the watched directory.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long the corpus must stay quiet before a batch
	// is emitted. Default: 2s
	DebounceWindow time.Duration

	// PollInterval is the stat interval in polling mode. Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the batch channel. Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  2 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
