package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// BuildLock is an exclusive cross-process lock on a data directory, held
// while the lexical index, entity store and vector graph are rewritten.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates an unlocked lock backed by the file at path.
func NewBuildLock(path string) *BuildLock {
	return &BuildLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock acquires the lock without blocking. A lock held by another
// process returns ErrCodeLockHeld.
func (l *BuildLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return aerrors.New(aerrors.ErrCodeLockHeld, "another build is running", nil).
			WithDetail("lock", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Unlocking an unlocked lock is a no-op.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *BuildLock) Path() string { return l.path }

// IsLocked reports whether this process holds the lock.
func (l *BuildLock) IsLocked() bool { return l.locked }
