package watcher

import (
	"log/slog"
	"time"
)

// Operation is the kind of change reported for a path.
type Operation int

const (
	// OpCreate reports a new file or directory.
	OpCreate Operation = iota
	// OpModify reports changed file contents.
	OpModify
	// OpDelete reports a removed path. A path renamed away is a delete;
	// the destination arrives as a create.
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one coalesced change.
type FileEvent struct {
	// Path is absolute.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// SkipFunc reports whether changes to an absolute path are ignored.
type SkipFunc func(path string, isDir bool) bool

// Options configures a Watcher.
type Options struct {
	// Debounce is how long a path must stay quiet before its event is
	// emitted. Default 200ms.
	Debounce time.Duration
	// BufferSize is the number of batches queued for the consumer.
	// Default 64.
	BufferSize int
	// Skip filters paths. Nil watches everything under the root.
	Skip   SkipFunc
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 200 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	if o.Skip == nil {
		o.Skip = func(string, bool) bool { return false }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
