package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/codesnip/internal/document"
)

// DocumentSource lists the documents of a workspace.
type DocumentSource interface {
	Load(ctx context.Context) ([]*document.Document, error)
}

// ProgressFunc is called after each document with the number handled so far.
type ProgressFunc func(done, total int)

// RunnerResult summarizes a workspace indexing run.
type RunnerResult struct {
	// Documents is the number of documents indexed.
	Documents int `json:"documents"`
	// Failed is the number of documents the index rejected.
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Runner indexes every document of a workspace, whole, in source order.
// Later documents are newer, so when the workspace exceeds capacity the
// first ones are evicted.
type Runner struct {
	index    DocumentIndex
	source   DocumentSource
	logger   *slog.Logger
	progress ProgressFunc
}

// NewRunner creates a runner. progress may be nil.
func NewRunner(index DocumentIndex, source DocumentSource, logger *slog.Logger, progress ProgressFunc) (*Runner, error) {
	if index == nil || source == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = func(int, int) {}
	}
	return &Runner{
		index:    index,
		source:   source,
		logger:   logger.With("component", "runner"),
		progress: progress,
	}, nil
}

// Run loads and indexes the workspace. Per-document failures are counted and
// logged; loading failures and cancellation end the run.
func (r *Runner) Run(ctx context.Context) (*RunnerResult, error) {
	start := time.Now()
	docs, err := r.source.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunnerResult{}
	for i, doc := range docs {
		err := r.index.Index(ctx, document.DocumentRange{Document: doc, Range: doc.FullRange()})
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err != nil:
			result.Failed++
			r.logger.Warn("index_document_failed",
				slog.String("uri", doc.URI),
				slog.String("error", err.Error()))
		default:
			result.Documents++
		}
		r.progress(i+1, len(docs))
	}

	result.Duration = time.Since(start)
	r.logger.Info("workspace_indexed",
		slog.Int("documents", result.Documents),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration))
	return result, nil
}
