package index

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/Aman-CERP/codesnip/internal/document"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/watcher"
	"github.com/Aman-CERP/codesnip/internal/workspace"
)

// DocumentIndex is the part of Manager driven by file changes.
type DocumentIndex interface {
	Index(ctx context.Context, dr document.DocumentRange) error
	Remove(ctx context.Context, uri string) (bool, error)
	IndexedDocumentRanges() []document.DocumentRange
}

// FileLoader reads one file into a document.
type FileLoader interface {
	LoadFile(ctx context.Context, path string) (*document.Document, error)
}

// Coordinator applies watcher batches to the index: created and modified
// files are re-indexed whole, deleted paths drop every document at or below
// them.
type Coordinator struct {
	index  DocumentIndex
	loader FileLoader
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCoordinator creates a coordinator. A nil logger uses slog.Default().
func NewCoordinator(index DocumentIndex, loader FileLoader, logger *slog.Logger) (*Coordinator, error) {
	if index == nil || loader == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		index:  index,
		loader: loader,
		logger: logger.With("component", "coordinator"),
	}, nil
}

// HandleEvents processes a batch in order. A failing event is logged and the
// rest of the batch still runs; only cancellation stops it.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var processed int
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.handleEvent(ctx, ev); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.Warn("file_event_failed",
				slog.String("path", ev.Path),
				slog.String("operation", ev.Operation.String()),
				slog.String("error", err.Error()))
			continue
		}
		processed++
	}

	c.logger.Debug("file_events_handled",
		slog.Int("events", len(events)),
		slog.Int("processed", processed))
	return nil
}

func (c *Coordinator) handleEvent(ctx context.Context, ev watcher.FileEvent) error {
	if ev.IsDir {
		return nil
	}
	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return c.indexFile(ctx, ev.Path)
	case watcher.OpDelete:
		_, err := c.removePath(ctx, ev.Path)
		return err
	default:
		return nil
	}
}

func (c *Coordinator) indexFile(ctx context.Context, path string) error {
	doc, err := c.loader.LoadFile(ctx, path)
	switch {
	case errors.Is(err, workspace.ErrSkipped),
		cserrors.GetCode(err) == cserrors.ErrCodeFileNotFound:
		// The file is no longer indexable, so nothing of it may stay behind.
		_, rmErr := c.removePath(ctx, path)
		return rmErr
	case err != nil:
		return err
	}
	return c.index.Index(ctx, document.DocumentRange{Document: doc, Range: doc.FullRange()})
}

// removePath removes the document for path and, for a deleted directory,
// every document below it.
func (c *Coordinator) removePath(ctx context.Context, path string) (int, error) {
	uri := workspace.URIFromPath(path)
	prefix := strings.TrimSuffix(uri, "/") + "/"

	var removed int
	for _, dr := range c.index.IndexedDocumentRanges() {
		docURI := dr.Document.URI
		if docURI != uri && !strings.HasPrefix(docURI, prefix) {
			continue
		}
		ok, err := c.index.Remove(ctx, docURI)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
