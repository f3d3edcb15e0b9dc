package logging

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// RotatingWriter is an io.Writer that rotates its file by size:
// server.log -> server.log.1 -> ... -> server.log.N, dropping the oldest.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter opens path for appending, creating its directory.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles < 0 {
		maxFiles = 0
	}
	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) << 20,
		maxFiles: maxFiles,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends p, rotating first when p would push the file past its size.
// A failed rotation keeps writing to the current file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.written > 0 && w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Sync flushes the file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the file. Later writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.written = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	w.file = nil

	for _, g := range w.generations() {
		if g >= w.maxFiles {
			_ = os.Remove(w.generationPath(g))
			continue
		}
		_ = os.Rename(w.generationPath(g), w.generationPath(g+1))
	}

	if w.maxFiles > 0 {
		if err := os.Rename(w.path, w.generationPath(1)); err != nil {
			_ = w.open()
			return fmt.Errorf("rotate log file: %w", err)
		}
	} else if err := os.Remove(w.path); err != nil {
		_ = w.open()
		return fmt.Errorf("truncate log file: %w", err)
	}

	return w.open()
}

// generations lists the existing rotated file numbers, highest first, so
// renaming in order never overwrites a file that still has to move.
func (w *RotatingWriter) generations() []int {
	matches, _ := filepath.Glob(w.path + ".*")
	prefix := filepath.Base(w.path) + "."
	var gens []int
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(m), prefix))
		if err != nil || n < 1 {
			continue
		}
		gens = append(gens, n)
	}
	slices.SortFunc(gens, func(a, b int) int { return cmp.Compare(b, a) })
	return gens
}

func (w *RotatingWriter) generationPath(n int) string {
	return w.path + "." + strconv.Itoa(n)
}
