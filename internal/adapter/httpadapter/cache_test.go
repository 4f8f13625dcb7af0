package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
	"github.com/couchcryptid/flume-jump-etl/internal/observability"
)

// --- LRU cache unit tests ---

func TestResultCache_BasicGetPut(t *testing.T) {
	c := newResultCache(3)

	c.put("a", domain.Result{RunID: "A"})
	c.put("b", domain.Result{RunID: "B"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result.RunID)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestResultCache_Eviction(t *testing.T) {
	c := newResultCache(2)

	c.put("a", domain.Result{RunID: "A"})
	c.put("b", domain.Result{RunID: "B"})
	c.put("c", domain.Result{RunID: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result.RunID)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result.RunID)
	assert.Equal(t, 2, c.size())
}

func TestResultCache_AccessPromotesEntry(t *testing.T) {
	c := newResultCache(2)

	c.put("a", domain.Result{RunID: "A"})
	c.put("b", domain.Result{RunID: "B"})

	c.get("a")

	// "b" is now least recently used.
	c.put("c", domain.Result{RunID: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestResultCache_UpdateExisting(t *testing.T) {
	c := newResultCache(2)

	c.put("a", domain.Result{RunID: "A1"})
	c.put("a", domain.Result{RunID: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.RunID)
	assert.Equal(t, 1, c.size())
}

// --- Analyzer ---

func TestAnalyzer_FailedAnalysisNotCached(t *testing.T) {
	a := NewAnalyzer(domain.NewFlume(0.086, 15), 4, observability.NewMetricsForTesting(), slog.Default())
	table := "Cota_m\tQ_m3h\tYi1_cm\tYi2_cm\tYi3_cm\tDeltaZ_cm\n" +
		"15.10\t30.1\t3.6\t3.5\t3.4\t0.5\n" +
		"15.30\t30.0\t10.9\t11.0\t11.1\t0.5\n"

	_, _, err := a.Analyze(context.Background(), strings.NewReader(table), domain.JumpBounds{Upstream: 1, Downstream: 3})
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	assert.Zero(t, a.cache.size())

	result, cached, err := a.Analyze(context.Background(), strings.NewReader(table), domain.JumpBounds{Upstream: 1, Downstream: 2})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, result.Stations, 2)
	assert.Equal(t, 1, a.cache.size())
}
