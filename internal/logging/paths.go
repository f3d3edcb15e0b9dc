package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.codesnip/logs, or a directory under the temp dir
// when the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codesnip", "logs")
	}
	return filepath.Join(home, ".codesnip", "logs")
}

// DefaultLogPath returns the serve log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
