package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// FilePath enables file logging when set.
	FilePath string
	// MaxSizeMB is the file size that triggers rotation.
	MaxSizeMB int
	// MaxFiles is the number of rotated files kept.
	MaxFiles int
	// Stderr also writes to stderr.
	Stderr bool
}

// DefaultConfig logs at level to stderr only.
func DefaultConfig(level string) Config {
	return Config{
		Level:     level,
		MaxSizeMB: 10,
		MaxFiles:  5,
		Stderr:    true,
	}
}

// ServeConfig logs at level to the default log file and never to stderr,
// which must stay quiet while MCP runs over stdio.
func ServeConfig(level string) Config {
	cfg := DefaultConfig(level)
	cfg.FilePath = DefaultLogPath()
	cfg.Stderr = false
	return cfg
}

// Setup builds a JSON logger for cfg. The returned cleanup closes the log
// file and must be called once the logger is no longer used.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, w)
		cleanup = func() {
			_ = w.Sync()
			_ = w.Close()
		}
	}
	if cfg.Stderr {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(handler), cleanup, nil
}

// SetupDefault runs Setup and installs the logger as slog's default.
func SetupDefault(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// ParseLevel converts a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
