package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	"github.com/Aman-CERP/codesnip/internal/store"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
)

// ErrNilSource is returned by NewSearcher when source is nil.
var ErrNilSource = errors.New("nil hit source")

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger.With("component", "search")
		}
	}
}

// WithMetrics records search metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// WithQueryStats records query statistics.
func WithQueryStats(q *telemetry.QueryStats) Option {
	return func(s *Searcher) { s.stats = q }
}

// Searcher runs queries against the index.
type Searcher struct {
	source  HitSource
	logger  *slog.Logger
	metrics *telemetry.Metrics
	stats   *telemetry.QueryStats
}

// NewSearcher creates a searcher over source.
func NewSearcher(source HitSource, opts ...Option) (*Searcher, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	s := &Searcher{
		source: source,
		logger: slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search returns the chunks matching query, highest score first. Results with
// equal scores keep the engine's order. An index that was never written to
// yields no results.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	start := time.Now()

	hits, initialized, err := s.source.Search(ctx, s.buildRequest(query, opts))
	if err != nil {
		s.metrics.RecordSearch(time.Since(start), 0, err)
		return nil, err
	}
	if !initialized {
		return []*Result{}, nil
	}

	results := make([]*Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}

	// Engines are not trusted to apply the where clause exactly.
	results = applyFilters(results, buildFilters(opts))

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	elapsed := time.Since(start)
	s.metrics.RecordSearch(elapsed, len(results), nil)
	s.stats.Record(query, len(results), elapsed)
	s.logger.Debug("search_completed",
		slog.String("query", query),
		slog.Int("hits", len(hits)),
		slog.Int("results", len(results)),
		slog.Duration("duration", elapsed))

	return results, nil
}

func (s *Searcher) buildRequest(query string, opts Options) store.SearchRequest {
	req := store.SearchRequest{
		Term:       query,
		Properties: []string{store.FieldSymbols},
		Limit:      max(opts.Limit, 0),
	}
	where := make(map[string][]string, 2)
	if len(opts.FilepathsFilter) > 0 {
		where[store.FieldURI] = opts.FilepathsFilter
	}
	if len(opts.LanguagesFilter) > 0 {
		where[store.FieldLanguage] = opts.LanguagesFilter
	}
	if len(where) > 0 {
		req.Where = where
	}
	return req
}

// toResult spreads the stored chunk into a Result. Records without a stored
// chunk fall back to their indexed fields.
func toResult(h store.Hit) *Result {
	var c chunk.Chunk
	if h.Record.Chunk != nil {
		c = *h.Record.Chunk
	} else {
		c = chunk.Chunk{
			URI:      h.Record.URI,
			Language: h.Record.Language,
			Symbols:  h.Record.Symbols,
		}
	}
	return &Result{Chunk: c, Score: normalizeScore(h.Score)}
}
