// Command server serves the jump analysis over HTTP. Station tables are
// posted to /v1/jumps; when SQLITE_PATH is set the latest stored batch run is
// available at /v1/runs/latest and readiness follows the database.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/flume-jump-etl/internal/config"
	"github.com/couchcryptid/flume-jump-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var (
		ready sharedobs.ReadinessChecker = httpadapter.ReadinessFunc(func(context.Context) error { return nil })
		runs  httpadapter.RunStore
		repo  *sqlite.Repository
	)
	if cfg.SQLitePath != "" {
		repo, err = sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite", "error", err)
			os.Exit(1)
		}
		ready = httpadapter.ReadinessFunc(repo.Ping)
		runs = repo
		logger.Info("serving stored runs", "path", cfg.SQLitePath)
	}

	analyzer := httpadapter.NewAnalyzer(cfg.Flume, cfg.ResultCacheSize, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, analyzer, runs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if repo != nil {
		if err := repo.Close(); err != nil {
			logger.Error("sqlite close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
