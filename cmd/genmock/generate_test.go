package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/tsv"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

func TestGenerate_ProducesJump(t *testing.T) {
	opts := defaultOptions()
	raws, err := generate(opts)
	require.NoError(t, err)
	require.Len(t, raws, opts.Stations)

	bounds := domain.JumpBounds{Upstream: opts.JumpAt, Downstream: opts.JumpAt + 2}
	result, err := domain.Analyze(raws, domain.NewFlume(opts.Width, opts.Offset), bounds)
	require.NoError(t, err)

	for _, s := range result.Stations {
		switch {
		case s.Seq <= opts.JumpAt:
			assert.Equal(t, domain.Supercritical, s.Regime, "station %d", s.Seq)
		case s.Seq >= opts.JumpAt+2:
			assert.Equal(t, domain.Subcritical, s.Regime, "station %d", s.Seq)
		}
	}
	assert.InEpsilon(t, result.Summary.Y2Theoretical, result.Summary.Y2, 0.01,
		"the tail depth is the conjugate of the upstream depth")
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := generate(defaultOptions())
	require.NoError(t, err)
	b, err := generate(defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := defaultOptions()
	other.Seed = 42
	c, err := generate(other)
	require.NoError(t, err)
	assert.Len(t, c, len(a))
}

func TestGenerate_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
		msg    string
	}{
		{"jump too late", func(o *options) { o.JumpAt = o.Stations - 1 }, "no subcritical station"},
		{"jump before first station", func(o *options) { o.JumpAt = 0 }, "at least 1"},
		{"zero flow", func(o *options) { o.FlowM3H = 0 }, "must be positive"},
		{"subcritical upstream depth", func(o *options) { o.Y1CM = 30 }, "not supercritical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.modify(&opts)
			_, err := generate(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestWriteTable_RoundTrips(t *testing.T) {
	raws, err := generate(defaultOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mock", "base.txt")
	require.NoError(t, writeTable(path, raws))

	got, err := tsv.NewReader(path, slog.Default()).Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, raws, got)
}
