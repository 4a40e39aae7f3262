package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const bytesPerMB = 1 << 20

// RotatingWriter appends to a log file and shifts it to numbered backups
// once it would grow past the size limit. The highest backup is discarded.
type RotatingWriter struct {
	path    string
	limit   int64
	backups int

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating its directory.
// Non-positive arguments fall back to 10MB and one backup.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, limit: 10 * bytesPerMB, backups: 1}
	if maxSizeMB > 0 {
		w.limit = int64(maxSizeMB) * bytesPerMB
	}
	if maxFiles > 0 {
		w.backups = maxFiles
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		// A failed rotation keeps appending to the current file.
		if err := w.shift(); err != nil {
			fmt.Fprintf(os.Stderr, "archivist: log rotation: %v\n", err)
		}
	}
	if w.f == nil {
		if err := w.reopen(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeFile()
}

func (w *RotatingWriter) closeFile() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotatingWriter) reopen() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f, w.size = f, st.Size()
	return nil
}

func (w *RotatingWriter) backup(i int) string {
	return w.path + "." + strconv.Itoa(i)
}

// shift renames archivist.log.N to .N+1 from the top down, then the live
// file to .1. Callers hold mu.
func (w *RotatingWriter) shift() error {
	if err := w.closeFile(); err != nil {
		return err
	}
	_ = os.Remove(w.backup(w.backups))
	for i := w.backups - 1; i > 0; i-- {
		if err := os.Rename(w.backup(i), w.backup(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := os.Rename(w.path, w.backup(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	w.size = 0
	return w.reopen()
}
