package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.archivist/logs, or a temp directory when the
// home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".archivist", "logs")
	}
	return filepath.Join(home, ".archivist", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "archivist.log")
}
