// Package index tracks which ranges of which documents are indexed and keeps
// the chunk store within capacity by evicting whole documents, oldest first.
package index

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	"github.com/Aman-CERP/codesnip/internal/document"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
)

// ErrNilDependency is returned when NewManager is given a nil store or chunker.
var ErrNilDependency = errors.New("nil dependency")

// ChunkStore is the part of store.IndexStore the manager mutates.
type ChunkStore interface {
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, chunks []*chunk.Chunk) ([]string, error)
	Remove(ctx context.Context, ids []string) (int, error)
}

// Chunker splits a document range into chunks. Its MaxChunks doubles as the
// manager's capacity.
type Chunker interface {
	chunk.Chunker
	Config() chunk.Config
}

// IndexedRange is the tracking entry for one document.
type IndexedRange struct {
	Document *document.Document
	Range    document.Range
	IndexIDs []string
}

// Stats describes the current size of the index.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	MaxChunks int `json:"max_chunks"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With("component", "index")
		}
	}
}

// WithMetrics records index and eviction metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager owns the chunk store contents and the per-document tracking table.
//
// Index calls for the same URI are serialized; calls for different URIs may
// interleave at store calls. The table is an insertion ordered map: the front
// is the oldest document and is evicted first.
type Manager struct {
	store     ChunkStore
	chunker   Chunker
	maxChunks int
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	locks *keyedLock

	mu    sync.Mutex
	table *simplelru.LRU[string, *IndexedRange]
}

// NewManager creates a manager. Capacity is taken from chunker.Config().MaxChunks.
func NewManager(store ChunkStore, chunker Chunker, opts ...Option) (*Manager, error) {
	if store == nil || chunker == nil {
		return nil, ErrNilDependency
	}
	cfg := chunker.Config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Capacity is never reached; entries leave only by Remove or eviction.
	table, err := simplelru.NewLRU[string, *IndexedRange](math.MaxInt, nil)
	if err != nil {
		return nil, cserrors.InternalError("create tracking table", err)
	}

	m := &Manager{
		store:     store,
		chunker:   chunker,
		maxChunks: cfg.MaxChunks,
		logger:    slog.Default().With("component", "index"),
		locks:     newKeyedLock(),
		table:     table,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IndexedDocumentRanges returns a snapshot of the tracked ranges, oldest first.
func (m *Manager) IndexedDocumentRanges() []document.DocumentRange {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.table.Values()
	out := make([]document.DocumentRange, len(entries))
	for i, e := range entries {
		out[i] = document.DocumentRange{Document: e.Document, Range: e.Range}
	}
	return out
}

// Index indexes a range of a document. An already indexed document is merged
// with its previous range, re-chunked in full and moved to the newest position.
// Afterwards the oldest documents are evicted until the store holds at most
// MaxChunks chunks.
func (m *Manager) Index(ctx context.Context, dr document.DocumentRange) (err error) {
	if dr.Document == nil {
		return cserrors.ValidationError("document range has no document", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	uri := dr.Document.URI
	unlock := m.locks.Lock(uri)
	defer unlock()

	var inserted int
	defer func() {
		m.metrics.RecordIndex(time.Since(start), inserted, err)
	}()

	m.mu.Lock()
	existing, found := m.table.Peek(uri)
	m.mu.Unlock()

	target := dr.Range
	if found {
		// Ranges far apart also cover the text between them.
		target = document.Union(dr.Range, existing.Range)
	}

	chunks := m.chunker.Chunk(ctx, document.DocumentRange{Document: dr.Document, Range: target})

	// Checked before the previous entry is dropped.
	if err := ctx.Err(); err != nil {
		return err
	}

	if found {
		if _, err := m.store.Remove(ctx, existing.IndexIDs); err != nil {
			return err
		}
		m.mu.Lock()
		m.table.Remove(uri)
		m.mu.Unlock()
	}

	ids, err := m.store.Insert(ctx, chunks)
	if err != nil {
		return err
	}
	inserted = len(ids)

	m.mu.Lock()
	m.table.Add(uri, &IndexedRange{Document: dr.Document, Range: target, IndexIDs: ids})
	m.mu.Unlock()

	m.logger.Debug("index_document",
		slog.String("uri", uri),
		slog.String("range", target.String()),
		slog.Int("chunks", len(ids)),
		slog.Bool("merged", found))

	return m.evict(ctx)
}

// evict removes the oldest documents until the store is within capacity.
func (m *Manager) evict(ctx context.Context) error {
	for {
		count, err := m.store.Count(ctx)
		if err != nil {
			return err
		}
		if count <= m.maxChunks {
			m.metrics.SetIndexSize(m.documents(), count)
			return nil
		}

		m.mu.Lock()
		uri, oldest, ok := m.table.RemoveOldest()
		m.mu.Unlock()
		if !ok {
			m.logger.Warn("index_eviction_underflow",
				slog.Int("count", count),
				slog.Int("max_chunks", m.maxChunks))
			m.metrics.SetIndexSize(0, count)
			return nil
		}

		removed, err := m.store.Remove(ctx, oldest.IndexIDs)
		if err != nil {
			return err
		}
		m.metrics.RecordEviction(removed)
		m.logger.Info("index_evicted",
			slog.String("uri", uri),
			slog.Int("chunks", removed),
			slog.Int("count", count))
	}
}

// Remove drops a document and its chunks. It reports whether the document
// was tracked.
func (m *Manager) Remove(ctx context.Context, uri string) (bool, error) {
	unlock := m.locks.Lock(uri)
	defer unlock()

	m.mu.Lock()
	entry, ok := m.table.Peek(uri)
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	if _, err := m.store.Remove(ctx, entry.IndexIDs); err != nil {
		return false, err
	}

	m.mu.Lock()
	m.table.Remove(uri)
	m.mu.Unlock()

	count, err := m.store.Count(ctx)
	if err != nil {
		return true, err
	}
	m.metrics.SetIndexSize(m.documents(), count)
	m.logger.Debug("index_removed", slog.String("uri", uri), slog.Int("chunks", len(entry.IndexIDs)))
	return true, nil
}

// Stats returns the current document and chunk counts.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents: m.documents(),
		Chunks:    count,
		MaxChunks: m.maxChunks,
	}, nil
}

// MaxChunks returns the capacity.
func (m *Manager) MaxChunks() int {
	return m.maxChunks
}

func (m *Manager) documents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Len()
}
