package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codesnip/internal/config"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/index"
	"github.com/Aman-CERP/codesnip/internal/lock"
	"github.com/Aman-CERP/codesnip/internal/logging"
	"github.com/Aman-CERP/codesnip/internal/mcp"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
	"github.com/Aman-CERP/codesnip/internal/watcher"
	"github.com/Aman-CERP/codesnip/pkg/version"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	metricsAddr string
	noWatch     bool
	lockDir     string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the snippet index to MCP clients over stdio",
		Long: `Index the workspace in the background, keep the index current as files
change and answer MCP tool calls on stdin/stdout.

stdout carries only JSON-RPC; logs go to ~/.codesnip/logs/server.log.
Only one serve process may run per workspace.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides server.metrics_addr)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not watch the workspace for changes")
	cmd.Flags().StringVar(&opts.lockDir, "lock-dir", "", "Directory for the per-workspace lock file (default ~/.codesnip/locks)")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts serveOptions) error {
	dir, cfg, err := loadWorkspace(root.dir)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}

	cleanup, err := logging.SetupDefault(logging.ServeConfig(root.level(cfg.Server.LogLevel)))
	if err != nil {
		return err
	}
	defer cleanup()
	logger := slog.Default()
	logger.Info("serve_starting",
		slog.String("root", dir),
		slog.String("version", version.Version),
		slog.String("backend", cfg.Search.Backend),
		slog.Int("max_chunks", cfg.Chunking.MaxChunks))

	lockDir := opts.lockDir
	if lockDir == "" {
		lockDir = lock.DefaultDir()
	}
	instance := lock.New(lock.PathFor(lockDir, dir))
	if err := instance.TryAcquire(); err != nil {
		logger.Error("serve_lock_failed", cserrors.LogAttrs(err)...)
		return err
	}
	defer func() { _ = instance.Release() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, dir, cfg, logger, opts.noWatch)
}

// serve runs the index, watcher and MCP server until ctx ends or the client
// disconnects.
func serve(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger, noWatch bool) error {
	a, err := newApp(root, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.MetricsAddr != "" {
		shutdown, err := telemetry.StartServer(cfg.Server.MetricsAddr, a.metrics)
		if err != nil {
			return cserrors.New(cserrors.ErrCodeListenFailed, "start metrics server", err).
				WithDetail("addr", cfg.Server.MetricsAddr)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	srv, err := mcp.NewServer(a.searcher, a.manager, a.loader,
		mcp.WithLogger(logger),
		mcp.WithQueryStats(a.stats),
		mcp.WithDefaultLimit(cfg.Search.DefaultLimit))
	if err != nil {
		return err
	}

	var w *watcher.Watcher
	var coordinator *index.Coordinator
	if !noWatch {
		debounce, err := cfg.DebounceDuration()
		if err != nil {
			return err
		}
		w, err = watcher.New(root, watcher.Options{
			Debounce: debounce,
			Skip:     a.loader.ShouldSkip,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		coordinator, err = index.NewCoordinator(a.manager, a.loader, logger)
		if err != nil {
			_ = w.Stop()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := a.indexWorkspace(gctx, nil); err != nil && !isCanceled(err) {
			logger.Error("workspace_index_failed", cserrors.LogAttrs(err)...)
		}
		return nil
	})

	if w != nil {
		g.Go(func() error { return w.Run(gctx) })
		g.Go(func() error {
			for batch := range w.Events() {
				if err := coordinator.HandleEvents(gctx, batch); err != nil {
					if isCanceled(err) {
						return nil
					}
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		// The client hanging up ends the whole process.
		defer cancel()
		return srv.Serve(gctx, cfg.Server.Transport)
	})

	err = g.Wait()
	logger.Info("serve_stopped")
	return err
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
