package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	assert.Equal(t, "server.log", filepath.Base(path))
	assert.Contains(t, path, filepath.Join(".codesnip", "logs"))
}

func TestServeConfig_NeverWritesStderr(t *testing.T) {
	cfg := ServeConfig("debug")

	assert.False(t, cfg.Stderr)
	assert.Equal(t, DefaultLogPath(), cfg.FilePath)
	assert.Equal(t, "debug", cfg.Level)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file-only logging at warn
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")
	cfg := Config{Level: "warn", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging below and at the threshold
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("index_document", slog.String("uri", "file:///a.go"))
	logger.Warn("index_eviction_underflow", slog.Int("count", 3))
	cleanup()

	// Then: only the warning is written, as one JSON object
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "index_eviction_underflow", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.InDelta(t, 3, entry["count"], 0)
}

func TestSetup_NoOutputsDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Debug("ignored") })
}

func TestSetup_UnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, _, err := Setup(Config{FilePath: filepath.Join(blocker, "server.log")})

	assert.Error(t, err)
}

func TestSetupDefault_InstallsLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	logPath := filepath.Join(t.TempDir(), "default.log")

	cleanup, err := SetupDefault(Config{Level: "info", FilePath: logPath, MaxSizeMB: 1})
	require.NoError(t, err)
	slog.Info("search_completed")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"search_completed"`)
}

func smallWriter(t *testing.T, maxBytes int64, maxFiles int) (*RotatingWriter, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(logPath, 1, maxFiles)
	require.NoError(t, err)
	w.maxSize = maxBytes
	t.Cleanup(func() { _ = w.Close() })
	return w, logPath
}

func TestRotatingWriter_Rotates(t *testing.T) {
	w, logPath := smallWriter(t, 16, 3)

	_, err := w.Write([]byte("first-entry-0123\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	current, err := os.ReadFile(logPath)
	require.NoError(t, err)
	rotated, err := os.ReadFile(logPath + ".1")
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(current))
	assert.Equal(t, "first-entry-0123\n", string(rotated))
}

func TestRotatingWriter_KeepsMaxFiles(t *testing.T) {
	w, logPath := smallWriter(t, 4, 2)

	for i := range 6 {
		_, err := fmt.Fprintf(w, "entry-%d\n", i)
		require.NoError(t, err)
	}

	newest, err := os.ReadFile(logPath + ".1")
	require.NoError(t, err)
	older, err := os.ReadFile(logPath + ".2")
	require.NoError(t, err)
	assert.Equal(t, "entry-4\n", string(newest))
	assert.Equal(t, "entry-3\n", string(older))
	assert.NoFileExists(t, logPath+".3")
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "existing.log")
	require.NoError(t, os.WriteFile(logPath, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(logPath, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, _ := smallWriter(t, 1024, 1)
	require.NoError(t, w.Close())

	_, err := w.Write([]byte("late"))

	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Sync())
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	w, logPath := smallWriter(t, 1<<20, 1)

	var wg sync.WaitGroup
	for id := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_, _ = fmt.Fprintf(w, "{\"id\":%d,\"iter\":%d}\n", id, j)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 1000)
}
