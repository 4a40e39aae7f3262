package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Poller watches one file by comparing its size and modification time on
// every tick.
type Poller struct {
	path     string
	interval time.Duration
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool

	exists  bool
	modTime time.Time
	size    int64
}

// NewPoller creates a poller for path.
func NewPoller(path string, interval time.Duration) *Poller {
	return &Poller{
		path:     path,
		interval: interval,
		events:   make(chan FileEvent, 16),
		errors:   make(chan error, 4),
		stopCh:   make(chan struct{}),
	}
}

// Start records the current state of the file and then polls until ctx is
// canceled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	if _, err := p.stat(); err != nil {
		return fmt.Errorf("initial stat: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			op, err := p.stat()
			if err != nil {
				p.send(nil, err)
				continue
			}
			if op != nil {
				p.send(&FileEvent{Path: filepath.Base(p.path), Operation: *op, Timestamp: time.Now()}, nil)
			}
		}
	}
}

// stat refreshes the recorded state and returns the operation that
// explains the difference, if any.
func (p *Poller) stat() (*Operation, error) {
	info, err := os.Stat(p.path)
	p.mu.Lock()
	defer p.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		if !p.exists {
			return nil, nil
		}
		p.exists = false
		op := OpDelete
		return &op, nil
	}
	if err != nil {
		return nil, err
	}

	var op *Operation
	switch {
	case !p.exists:
		o := OpCreate
		op = &o
	case !info.ModTime().Equal(p.modTime) || info.Size() != p.size:
		o := OpModify
		op = &o
	}
	p.exists = true
	p.modTime = info.ModTime()
	p.size = info.Size()
	return op, nil
}

func (p *Poller) send(event *FileEvent, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if event != nil {
		select {
		case p.events <- *event:
		default:
		}
	}
	if err != nil {
		select {
		case p.errors <- err:
		default:
		}
	}
}

// Stop stops polling and closes the channels. Safe to call multiple times.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *Poller) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of stat errors.
func (p *Poller) Errors() <-chan error {
	return p.errors
}
