// Package lock keeps a single serving process per workspace.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

// DefaultDir returns ~/.codesnip/locks.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "codesnip", "locks")
	}
	return filepath.Join(home, ".codesnip", "locks")
}

// PathFor returns the lock file for a workspace root inside dir.
func PathFor(dir, root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")
}

// InstanceLock is an exclusive cross-process lock that records the holder's PID.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a lock at path. Nothing is touched until TryAcquire.
func New(path string) *InstanceLock {
	return &InstanceLock{path: path, flock: flock.New(path)}
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

// TryAcquire takes the lock without blocking. A lock held by another process
// yields ErrCodeLockHeld.
func (l *InstanceLock) TryAcquire() error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return cserrors.New(cserrors.ErrCodeFilePermission, "create lock directory", err).WithDetail("path", l.path)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return cserrors.New(cserrors.ErrCodeFilePermission, "acquire lock", err).WithDetail("path", l.path)
	}
	if !acquired {
		e := cserrors.New(cserrors.ErrCodeLockHeld, "workspace is already served by another process", nil).
			WithDetail("path", l.path).
			WithSuggestion("Stop the other codesnip serve process or pick another workspace.")
		if pid, err := l.HolderPID(); err == nil {
			e = e.WithDetail("pid", strconv.Itoa(pid))
		}
		return e
	}
	l.locked = true

	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = l.Release()
		return cserrors.New(cserrors.ErrCodeFilePermission, "write lock file", err).WithDetail("path", l.path)
	}
	return nil
}

// Release unlocks. Calling it on an unheld lock is a no-op.
func (l *InstanceLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Locked reports whether this process holds the lock.
func (l *InstanceLock) Locked() bool {
	return l.locked
}

// HolderPID reads the PID recorded by the last holder.
func (l *InstanceLock) HolderPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in lock file: %w", err)
	}
	return pid, nil
}
