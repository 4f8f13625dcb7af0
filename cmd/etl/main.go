package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/flume-jump-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/tsv"
	"github.com/couchcryptid/flume-jump-etl/internal/config"
	"github.com/couchcryptid/flume-jump-etl/internal/observability"
	"github.com/couchcryptid/flume-jump-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", cfg.OutputDir, "error", err)
		return 1
	}

	loaders := []pipeline.ResultLoader{
		csvexport.NewExporter(cfg.OutputDir, cfg.StationsFile, cfg.SummaryFile, logger),
	}

	// Optional sinks, enabled by SQLITE_PATH and KAFKA_ENABLED.
	var repo *sqlite.Repository
	if cfg.SQLitePath != "" {
		repo, err = sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite", "error", err)
			return 1
		}
		defer repo.Close()
		loaders = append(loaders, repo)
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	reader := tsv.NewReader(cfg.InputPath, logger)
	transformer := pipeline.NewTransformer(cfg.Flume, cfg.Bounds, logger)
	p := pipeline.New(reader, transformer, loaders, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce := func() error {
		_, err := p.Run(ctx)
		if cfg.MetricsTextfile != "" {
			if werr := observability.WriteTextfile(cfg.MetricsTextfile); werr != nil {
				logger.Error("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", werr)
			}
		}
		return err
	}

	if cfg.Schedule == "" {
		if err := runOnce(); err != nil {
			return 1
		}
		return 0
	}

	return runScheduled(ctx, cfg, p, runOnce, repo, metrics, logger)
}

// runScheduled re-runs the pipeline on the cron schedule and serves health,
// readiness and metrics until a signal arrives.
func runScheduled(
	ctx context.Context,
	cfg *config.Config,
	p *pipeline.Pipeline,
	runOnce func() error,
	repo *sqlite.Repository,
	metrics *observability.Metrics,
	logger *slog.Logger,
) int {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(cfg.Schedule, func() { _ = runOnce() }); err != nil {
		logger.Error("invalid ETL_SCHEDULE", "schedule", cfg.Schedule, "error", err)
		return 1
	}

	var runs httpadapter.RunStore
	if repo != nil {
		runs = repo
	}
	analyzer := httpadapter.NewAnalyzer(cfg.Flume, cfg.ResultCacheSize, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, analyzer, runs, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run immediately rather than waiting for the first tick.
	if err := runOnce(); err != nil {
		logger.Warn("initial run failed, waiting for schedule", "error", err)
	}

	c.Start()
	logger.Info("scheduler started", "schedule", cfg.Schedule)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-c.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled run still in progress at shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return 0
}
