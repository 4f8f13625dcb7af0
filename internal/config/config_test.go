package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

const defaultBroker = "localhost:9092"

// setRequired sets the experiment-specific variables that have no defaults.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FLUME_WIDTH_M", "0.086")
	t.Setenv("REFERENCE_OFFSET_M", "15.00")
	t.Setenv("JUMP_UPSTREAM_SEQ", "3")
	t.Setenv("JUMP_DOWNSTREAM_SEQ", "5")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "base.txt", cfg.InputPath)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "df.output.csv", cfg.StationsFile)
	assert.Equal(t, "df.output.02.csv", cfg.SummaryFile)
	assert.Equal(t, domain.Flume{
		Width:           0.086,
		ReferenceOffset: 15.0,
		Gravity:         9.81,
		FlowDivisor:     3600,
		Viscosity:       1e-6,
	}, cfg.Flume)
	assert.Equal(t, domain.JumpBounds{Upstream: 3, Downstream: 5}, cfg.Bounds)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.Schedule)
	assert.Empty(t, cfg.MetricsTextfile)
	assert.Equal(t, 128, cfg.ResultCacheSize)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "flume-jump-results", cfg.KafkaSinkTopic)
	assert.Empty(t, cfg.SQLitePath)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("INPUT_PATH", "/data/run-07.txt")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("STATIONS_FILE", "stations.csv")
	t.Setenv("SUMMARY_FILE", "jump.csv")
	t.Setenv("GRAVITY_MS2", "9.80665")
	t.Setenv("FLOW_UNIT_DIVISOR", "1000")
	t.Setenv("KINEMATIC_VISCOSITY_M2S", "1.31e-6")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("ETL_SCHEDULE", "*/15 * * * *")
	t.Setenv("METRICS_TEXTFILE", "/var/lib/node_exporter/flume.prom")
	t.Setenv("RESULT_CACHE_SIZE", "16")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "lab-results")
	t.Setenv("SQLITE_PATH", "/data/flume.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/run-07.txt", cfg.InputPath)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, "stations.csv", cfg.StationsFile)
	assert.Equal(t, "jump.csv", cfg.SummaryFile)
	assert.Equal(t, 9.80665, cfg.Flume.Gravity)
	assert.Equal(t, 1000.0, cfg.Flume.FlowDivisor)
	assert.Equal(t, 1.31e-6, cfg.Flume.Viscosity)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule)
	assert.Equal(t, "/var/lib/node_exporter/flume.prom", cfg.MetricsTextfile)
	assert.Equal(t, 16, cfg.ResultCacheSize)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "lab-results", cfg.KafkaSinkTopic)
	assert.Equal(t, "/data/flume.db", cfg.SQLitePath)
}

func TestLoad_RequiredExperimentSettings(t *testing.T) {
	for _, key := range []string{"FLUME_WIDTH_M", "REFERENCE_OFFSET_M", "JUMP_UPSTREAM_SEQ", "JUMP_DOWNSTREAM_SEQ"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
		msg   string
	}{
		{"FLUME_WIDTH_M", "wide", "FLUME_WIDTH_M"},
		{"FLUME_WIDTH_M", "0", "width"},
		{"FLUME_WIDTH_M", "-0.086", "width"},
		{"GRAVITY_MS2", "0", "gravity"},
		{"FLOW_UNIT_DIVISOR", "-3600", "flow divisor"},
		{"JUMP_UPSTREAM_SEQ", "third", "JUMP_UPSTREAM_SEQ"},
		{"JUMP_UPSTREAM_SEQ", "0", "1-based"},
		{"JUMP_UPSTREAM_SEQ", "5", "less than"},
		{"JUMP_UPSTREAM_SEQ", "6", "less than"},
		{"RESULT_CACHE_SIZE", "0", "RESULT_CACHE_SIZE"},
		{"KAFKA_ENABLED", "maybe", "KAFKA_ENABLED"},
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad_SameArtifactNames(t *testing.T) {
	setRequired(t)
	t.Setenv("STATIONS_FILE", "out.csv")
	t.Setenv("SUMMARY_FILE", "out.csv")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}
