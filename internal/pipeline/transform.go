package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// JumpTransformer implements Transformer with a fixed flume and jump bounds.
type JumpTransformer struct {
	flume  domain.Flume
	bounds domain.JumpBounds
	logger *slog.Logger
}

// NewTransformer creates a JumpTransformer for one experiment configuration.
func NewTransformer(flume domain.Flume, bounds domain.JumpBounds, logger *slog.Logger) *JumpTransformer {
	return &JumpTransformer{
		flume:  flume,
		bounds: bounds,
		logger: logger,
	}
}

func (t *JumpTransformer) Transform(ctx context.Context, raws []domain.RawStation) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	result, err := domain.Analyze(raws, t.flume, t.bounds)
	if err != nil {
		return domain.Result{}, err
	}

	for _, s := range result.Stations {
		t.logger.Debug("station derived",
			"seq", s.Seq,
			"depth", s.Depth,
			"froude", s.Froude,
			"regime", s.Regime,
		)
	}
	return result, nil
}
