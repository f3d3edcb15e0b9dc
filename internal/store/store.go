package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

// IndexStore owns the engine handle. The engine is created on the first
// Insert; until then Count, Remove and Search report an empty index.
type IndexStore struct {
	mu        sync.RWMutex
	engine    Engine
	newEngine EngineFactory
	schema    Schema
	logger    *slog.Logger
	closed    bool
}

// IndexStoreOption configures an IndexStore.
type IndexStoreOption func(*IndexStore)

// WithSchema overrides DefaultSchema.
func WithSchema(schema Schema) IndexStoreOption {
	return func(s *IndexStore) {
		s.schema = schema
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) IndexStoreOption {
	return func(s *IndexStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIndexStore creates a store that builds its engine with factory.
func NewIndexStore(factory EngineFactory, opts ...IndexStoreOption) *IndexStore {
	s := &IndexStore{
		newEngine: factory,
		schema:    DefaultSchema(),
		logger:    slog.Default().With("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialized reports whether the engine has been created.
func (s *IndexStore) Initialized() bool {
	return s.current() != nil
}

func (s *IndexStore) current() Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// ensureEngine creates the engine at most once. A failed attempt leaves the
// store uninitialized so the next insert retries.
func (s *IndexStore) ensureEngine(ctx context.Context) (Engine, error) {
	if e := s.current(); e != nil {
		return e, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return s.engine, nil
	}
	if s.closed {
		return nil, cserrors.New(cserrors.ErrCodeIndexFailed, "index store is closed", ErrClosed)
	}
	if s.newEngine == nil {
		return nil, cserrors.New(cserrors.ErrCodeEngineInitFailed, "no engine factory configured", nil)
	}

	engine, err := s.newEngine()
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeEngineInitFailed, "failed to create engine", err)
	}
	if err := engine.Create(ctx, s.schema); err != nil {
		_ = engine.Close()
		return nil, cserrors.New(cserrors.ErrCodeEngineInitFailed, "failed to create engine schema", err)
	}

	s.engine = engine
	s.logger.Debug("engine_initialized",
		slog.Any("searchable", s.schema.Searchable),
		slog.Any("filterable", s.schema.Filterable))
	return engine, nil
}

// Count returns the number of indexed chunks, 0 before the first insert.
func (s *IndexStore) Count(ctx context.Context) (int, error) {
	engine := s.current()
	if engine == nil {
		return 0, nil
	}

	n, err := engine.Count(ctx)
	if err != nil {
		return 0, cserrors.New(cserrors.ErrCodeIndexFailed, "failed to count chunks", err)
	}
	return n, nil
}

// Insert indexes chunks and returns one id per chunk, in order.
func (s *IndexStore) Insert(ctx context.Context, chunks []*chunk.Chunk) ([]string, error) {
	engine, err := s.ensureEngine(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []string{}, nil
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = NewRecord(c)
	}

	ids, err := engine.InsertMany(ctx, records)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeIndexFailed, "failed to insert chunks", err)
	}
	return ids, nil
}

// Remove deletes chunks by id and returns how many were removed.
func (s *IndexStore) Remove(ctx context.Context, ids []string) (int, error) {
	engine := s.current()
	if engine == nil || len(ids) == 0 {
		return 0, nil
	}

	n, err := engine.RemoveMany(ctx, ids)
	if err != nil {
		return 0, cserrors.New(cserrors.ErrCodeIndexFailed, "failed to remove chunks", err)
	}
	return n, nil
}

// Search queries the engine. The boolean is false when nothing was ever
// indexed, in which case hits are always empty.
func (s *IndexStore) Search(ctx context.Context, req SearchRequest) ([]Hit, bool, error) {
	engine := s.current()
	if engine == nil {
		return []Hit{}, false, nil
	}

	hits, err := engine.Search(ctx, req)
	if err != nil {
		return nil, true, cserrors.New(cserrors.ErrCodeSearchFailed, "engine search failed", err)
	}
	return hits, true, nil
}

// Close releases the engine, if any.
func (s *IndexStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}
