package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
	"github.com/couchcryptid/flume-jump-etl/internal/observability"
)

// StationExtractor reads the raw station rows of one run.
type StationExtractor interface {
	Extract(ctx context.Context) ([]domain.RawStation, error)
}

// Transformer converts raw station rows into a complete result.
type Transformer interface {
	Transform(ctx context.Context, raws []domain.RawStation) (domain.Result, error)
}

// ResultLoader delivers a complete result to one sink.
type ResultLoader interface {
	Name() string
	Load(ctx context.Context, result domain.Result) error
}

// StagedLoader is a ResultLoader that can prepare its output without
// publishing it. The pipeline stages it in loader order and commits only
// after every other sink has succeeded, discarding the staged output
// otherwise.
type StagedLoader interface {
	ResultLoader
	Stage(ctx context.Context, result domain.Result) (commit func() error, discard func(), err error)
}

// Stage names used in errors, logs and metrics.
const (
	StageExtract = "extract"
	StageAnalyze = "analyze"
	StageLoad    = "load"
)

// StageError records which stage aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs extract, analyze and load once per Run call.
type Pipeline struct {
	extractor   StationExtractor
	transformer Transformer
	loaders     []ResultLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool

	// mu serialises runs so scheduled and manual triggers never overlap.
	mu sync.Mutex
}

// New creates a Pipeline with the given stages and observability. Loaders run
// in order after the whole result has been computed; staged loaders publish
// last, once every other loader has succeeded.
func New(e StationExtractor, t Transformer, loaders []ResultLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed a run.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one complete run. Any failing stage aborts the run; no loader
// sees a result unless every station and the jump summary were computed.
func (p *Pipeline) Run(ctx context.Context) (domain.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	result, err := p.run(ctx)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			p.metrics.StageErrors.WithLabelValues(se.Stage).Inc()
		}
		p.metrics.Runs.WithLabelValues("failure").Inc()

		attrs := []any{"error", err}
		if seq, ok := domain.StationSeq(err); ok {
			attrs = append(attrs, "seq", seq)
		}
		p.logger.Error("run failed", attrs...)
		return domain.Result{}, err
	}

	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.StationsProcessed.Add(float64(len(result.Stations)))
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.metrics.LastSuccess.Set(float64(result.ProcessedAt.Unix()))
	for _, row := range result.Summary.Rows() {
		p.metrics.JumpSummary.WithLabelValues(row.Name).Set(row.Value)
	}
	p.ready.Store(true)

	p.logger.Info("run complete",
		"run_id", result.RunID,
		"stations", len(result.Stations),
		"upstream", result.Summary.Bounds.Upstream,
		"downstream", result.Summary.Bounds.Downstream,
		"y2_teor", result.Summary.Y2Theoretical,
		"duration", time.Since(start),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (domain.Result, error) {
	raws, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Result{}, &StageError{Stage: StageExtract, Err: err}
	}
	p.logger.Info("stations loaded", "stations", len(raws))

	result, err := p.transformer.Transform(ctx, raws)
	if err != nil {
		return domain.Result{}, &StageError{Stage: StageAnalyze, Err: err}
	}

	type pending struct {
		name    string
		commit  func() error
		discard func()
	}
	var staged []pending
	abort := func(err error) (domain.Result, error) {
		for _, st := range staged {
			st.discard()
		}
		return domain.Result{}, &StageError{Stage: StageLoad, Err: err}
	}

	for _, l := range p.loaders {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		if sl, ok := l.(StagedLoader); ok {
			commit, discard, err := sl.Stage(ctx, result)
			if err != nil {
				return abort(fmt.Errorf("%s sink: %w", l.Name(), err))
			}
			staged = append(staged, pending{name: l.Name(), commit: commit, discard: discard})
			continue
		}
		if err := l.Load(ctx, result); err != nil {
			return abort(fmt.Errorf("%s sink: %w", l.Name(), err))
		}
		p.metrics.Exports.WithLabelValues(l.Name()).Inc()
	}

	for i, st := range staged {
		if err := st.commit(); err != nil {
			staged = staged[i+1:]
			return abort(fmt.Errorf("%s sink: %w", st.name, err))
		}
		p.metrics.Exports.WithLabelValues(st.name).Inc()
	}
	return result, nil
}
