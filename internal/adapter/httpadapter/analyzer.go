package httpadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/tsv"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
	"github.com/couchcryptid/flume-jump-etl/internal/observability"
)

// Analyzer runs the jump analysis for uploaded station tables and memoises
// results by run ID.
type Analyzer struct {
	flume   domain.Flume
	cache   *resultCache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer for one flume with an LRU of cacheSize results.
func NewAnalyzer(flume domain.Flume, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		flume:   flume,
		cache:   newResultCache(cacheSize),
		metrics: metrics,
		logger:  logger,
	}
}

// Analyze parses a station table and characterizes the jump between bounds.
// The second return value reports whether the result came from the cache.
func (a *Analyzer) Analyze(ctx context.Context, table io.Reader, bounds domain.JumpBounds) (domain.Result, bool, error) {
	raws, err := tsv.Parse(table)
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("parse station table: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Result{}, false, err
	}

	runID := domain.RunID(raws, a.flume, bounds)
	if result, ok := a.cache.get(runID); ok {
		a.metrics.ResultCache.WithLabelValues("hit").Inc()
		return result, true, nil
	}
	a.metrics.ResultCache.WithLabelValues("miss").Inc()

	result, err := domain.Analyze(raws, a.flume, bounds)
	if err != nil {
		return domain.Result{}, false, err
	}
	a.cache.put(runID, result)

	a.logger.Info("jump analysed",
		"run_id", result.RunID,
		"stations", len(result.Stations),
		"upstream", bounds.Upstream,
		"downstream", bounds.Downstream,
	)
	return result, false, nil
}
