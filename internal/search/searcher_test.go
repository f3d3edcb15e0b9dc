package search_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	"github.com/Aman-CERP/codesnip/internal/document"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/index"
	"github.com/Aman-CERP/codesnip/internal/search"
	"github.com/Aman-CERP/codesnip/internal/store"
	"github.com/Aman-CERP/codesnip/internal/store/mocks"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
)

func hit(id, uri, language string, score float64) store.Hit {
	c := &chunk.Chunk{
		URI:      uri,
		Range:    document.NewRange(0, 0, 1, 0),
		Text:     id + "\n",
		Language: language,
		Symbols:  id,
	}
	return store.Hit{ID: id, Score: score, Record: store.NewRecord(c)}
}

// initializedStore returns an IndexStore whose engine is the mock, already
// created by one insert.
func initializedStore(t *testing.T, engine *mocks.MockEngine) *store.IndexStore {
	t.Helper()
	engine.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	engine.EXPECT().InsertMany(gomock.Any(), gomock.Len(1)).Return([]string{"seed"}, nil)
	s := store.NewIndexStore(func() (store.Engine, error) { return engine, nil })
	ids, err := s.Insert(context.Background(), []*chunk.Chunk{{URI: "file:///seed.go", Text: "seed", Symbols: "seed"}})
	require.NoError(t, err)
	require.Equal(t, []string{"seed"}, ids)
	require.True(t, s.Initialized())
	return s
}

func resultTexts(results []*search.Result) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}

func TestNewSearcher_NilSource(t *testing.T) {
	_, err := search.NewSearcher(nil)
	assert.ErrorIs(t, err, search.ErrNilSource)
}

func TestSearcher_Search_UninitializedIsEmpty(t *testing.T) {
	s := store.NewIndexStore(func() (store.Engine, error) {
		t.Fatal("search must not create the engine")
		return nil, nil
	})
	searcher, err := search.NewSearcher(s)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "anything", search.Options{})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearcher_Search_BuildsEngineRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)

	engine.EXPECT().Search(gomock.Any(), store.SearchRequest{
		Term:       "parse config",
		Properties: []string{store.FieldSymbols},
		Where: map[string][]string{
			store.FieldURI:      {"file:///a.go"},
			store.FieldLanguage: {"go"},
		},
		Limit: 5,
	}).Return(nil, nil)
	engine.EXPECT().Search(gomock.Any(), store.SearchRequest{
		Term:       "render",
		Properties: []string{store.FieldSymbols},
	}).Return(nil, nil)

	searcher, err := search.NewSearcher(s)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "parse config", search.Options{
		FilepathsFilter: []string{"file:///a.go"},
		LanguagesFilter: []string{"go"},
		Limit:           5,
	})
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "render", search.Options{Limit: -3})
	require.NoError(t, err)
}

func TestSearcher_Search_NormalizesAndSortsScores(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)

	// Given: an engine returning NaN, negative, infinite and tied scores
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]store.Hit{
		hit("nan", "file:///a.go", "go", math.NaN()),
		hit("low", "file:///a.go", "go", 0.5),
		hit("high", "file:///a.go", "go", 2.0),
		hit("negative", "file:///a.go", "go", -1.0),
		hit("tieA", "file:///a.go", "go", 1.0),
		hit("inf", "file:///a.go", "go", math.Inf(1)),
		hit("tieB", "file:///a.go", "go", 1.0),
	}, nil)

	searcher, err := search.NewSearcher(s)
	require.NoError(t, err)

	// When: searching
	results, err := searcher.Search(context.Background(), "x", search.Options{})

	// Then: NaN and negative scores become 0, +Inf stays the strongest hit,
	// order is descending and ties keep engine order
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"inf\n", "high\n", "tieA\n", "tieB\n", "low\n", "nan\n", "negative\n"},
		resultTexts(results))
	for _, r := range results {
		assert.False(t, math.IsNaN(r.Score))
		assert.GreaterOrEqual(t, r.Score, 0.0)
	}
	assert.True(t, math.IsInf(results[0].Score, 1))
	assert.Equal(t, 0.0, results[5].Score)
	assert.Equal(t, 0.0, results[6].Score)
}

func TestSearcher_Search_ScoreBeatsNaN(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)

	// Given: the NaN hit comes first from the engine
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]store.Hit{
		hit("nan", "file:///a.go", "go", math.NaN()),
		hit("five", "file:///a.go", "go", 5),
	}, nil)

	searcher, err := search.NewSearcher(s)
	require.NoError(t, err)

	// When: searching
	results, err := searcher.Search(context.Background(), "x", search.Options{})

	// Then: the scored hit leads and the NaN hit reports 0
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "five\n", results[0].Text)
	assert.Equal(t, 5.0, results[0].Score)
	assert.Equal(t, "nan\n", results[1].Text)
	assert.Equal(t, 0.0, results[1].Score)
}

func TestSearcher_Search_RefiltersBypassedEngineFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)

	// Given: an engine that ignores its where clause
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]store.Hit{
		hit("keep", "file:///a.go", "go", 1.0),
		hit("wrongLanguage", "file:///a.go", "python", 3.0),
		hit("wrongFile", "file:///b.go", "go", 2.0),
		hit("keepToo", "file:///c.go", "go", 0.5),
	}, nil)

	searcher, err := search.NewSearcher(s)
	require.NoError(t, err)

	// When: searching with both filters
	results, err := searcher.Search(context.Background(), "x", search.Options{
		FilepathsFilter: []string{"file:///a.go", "file:///c.go"},
		LanguagesFilter: []string{"go"},
	})

	// Then: only results satisfying both filters survive
	require.NoError(t, err)
	assert.Equal(t, []string{"keep\n", "keepToo\n"}, resultTexts(results))
}

func TestSearcher_Search_SpreadsStoredChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)

	h := hit("handler", "file:///a.go", "go", 1.5)
	bare := store.Hit{ID: "bare", Score: 0.1, Record: store.Record{URI: "file:///d.go", Language: "go", Symbols: "bare"}}
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]store.Hit{h, bare}, nil)

	searcher, err := search.NewSearcher(s)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "handler", search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, *h.Record.Chunk, results[0].Chunk)
	assert.Equal(t, 1.5, results[0].Score)
	assert.Equal(t, "file:///d.go", results[1].URI)
	assert.Equal(t, "bare", results[1].Symbols)
	assert.Empty(t, results[1].Text)
}

func TestSearcher_Search_PropagatesEngineErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("malformed schema"))

	metrics := telemetry.NewMetrics()
	searcher, err := search.NewSearcher(s, search.WithMetrics(metrics))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "x", search.Options{})

	require.Error(t, err)
	assert.Equal(t, cserrors.ErrCodeSearchFailed, cserrors.GetCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchQueriesTotal.WithLabelValues(telemetry.ResultError)))
}

func TestSearcher_Search_RecordsTelemetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	s := initializedStore(t, engine)
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]store.Hit{hit("a", "file:///a.go", "go", 1)}, nil)
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, nil)

	metrics := telemetry.NewMetrics()
	stats := telemetry.NewQueryStats()
	searcher, err := search.NewSearcher(s, search.WithMetrics(metrics), search.WithQueryStats(stats))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "handler", search.Options{})
	require.NoError(t, err)
	_, err = searcher.Search(context.Background(), "missing", search.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchQueriesTotal.WithLabelValues(telemetry.ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchQueriesTotal.WithLabelValues(telemetry.ResultZeroResult)))
	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, []string{"missing"}, snap.ZeroResultQueries)
}

func TestSearcher_EndToEnd(t *testing.T) {
	for _, backend := range store.ValidBackends() {
		t.Run(backend, func(t *testing.T) {
			// Given: a manager with capacity 2, 20 character chunks, no overlap
			factory, err := store.NewEngineFactory(backend)
			require.NoError(t, err)
			s := store.NewIndexStore(factory)
			defer s.Close()
			chunker, err := chunk.NewRangeChunker(chunk.Config{MaxChunks: 2, ChunkSize: 20, OverlapLines: 0}, nil)
			require.NoError(t, err)
			m, err := index.NewManager(s, chunker)
			require.NoError(t, err)
			ctx := context.Background()

			doc := document.New("file:///notes.txt", "plaintext", 1, "line one is here\nline two is here\nline three here")
			require.NoError(t, m.Index(ctx, document.DocumentRange{Document: doc, Range: doc.FullRange()}))

			searcher, err := search.NewSearcher(s)
			require.NoError(t, err)

			// When: searching a word from the second line
			results, err := searcher.Search(ctx, "two", search.Options{})

			// Then: exactly the second chunk is returned
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "line two is here\n", results[0].Text)
			assert.Equal(t, document.NewRange(1, 0, 2, 0), results[0].Range)
			assert.Greater(t, results[0].Score, 0.0)

			// And: a language filter that excludes the document returns nothing
			results, err = searcher.Search(ctx, "line", search.Options{LanguagesFilter: []string{"go"}})
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}
