package cmd

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	"github.com/Aman-CERP/codesnip/internal/config"
	"github.com/Aman-CERP/codesnip/internal/index"
	"github.com/Aman-CERP/codesnip/internal/search"
	"github.com/Aman-CERP/codesnip/internal/store"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
	"github.com/Aman-CERP/codesnip/internal/workspace"
)

// app wires the index for one workspace.
type app struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	loader   *workspace.Loader
	store    *store.IndexStore
	manager  *index.Manager
	searcher *search.Searcher
	metrics  *telemetry.Metrics
	stats    *telemetry.QueryStats
}

func newApp(root string, cfg *config.Config, logger *slog.Logger) (*app, error) {
	loader, err := workspace.NewLoader(workspace.Options{
		Root:             root,
		Exclude:          cfg.Watch.Exclude,
		Extensions:       cfg.Watch.Extensions,
		MaxFileSize:      cfg.Watch.MaxFileSize,
		RespectGitignore: true,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	factory, err := store.NewEngineFactory(cfg.Search.Backend)
	if err != nil {
		return nil, err
	}
	s := store.NewIndexStore(factory, store.WithLogger(logger.With("component", "store")))

	chunker, err := chunk.NewRangeChunker(cfg.Chunking.ChunkerConfig(), nil)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	stats := telemetry.NewQueryStats()

	manager, err := index.NewManager(s, chunker, index.WithLogger(logger), index.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	searcher, err := search.NewSearcher(s,
		search.WithLogger(logger),
		search.WithMetrics(metrics),
		search.WithQueryStats(stats))
	if err != nil {
		return nil, err
	}

	return &app{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		loader:   loader,
		store:    s,
		manager:  manager,
		searcher: searcher,
		metrics:  metrics,
		stats:    stats,
	}, nil
}

// indexWorkspace loads and indexes every workspace file.
func (a *app) indexWorkspace(ctx context.Context, progress index.ProgressFunc) (*index.RunnerResult, error) {
	runner, err := index.NewRunner(a.manager, a.loader, a.logger, progress)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (a *app) Close() error {
	return a.store.Close()
}
