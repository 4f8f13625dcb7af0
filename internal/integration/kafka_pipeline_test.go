//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/flume-jump-etl/internal/adapter/tsv"
	"github.com/couchcryptid/flume-jump-etl/internal/config"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
	"github.com/couchcryptid/flume-jump-etl/internal/observability"
	"github.com/couchcryptid/flume-jump-etl/internal/pipeline"
)

const testSinkTopic = "test-flume-results"

const labTable = "Cota_m\tQ_m3h\tYi1_cm\tYi2_cm\tYi3_cm\tDeltaZ_cm\n" +
	"15.10\t30.1\t3.6\t3.5\t3.4\t0.5\n" +
	"15.30\t30.0\t3.8\t3.7\t3.6\t0.5\n" +
	"15.50\t29.9\t4.0\t3.9\t4.1\t0.5\n" +
	"15.70\t30.0\t6.5\t7.5\t7.0\t0.5\n" +
	"15.95\t30.1\t10.9\t11.0\t11.1\t0.5\n" +
	"16.20\t29.9\t11.2\t11.3\t11.1\t0.5\n"

// publishedMessage holds a message read back from the sink topic.
type publishedMessage struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("flume-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader, n int) []publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedMessage, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from sink topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, publishedMessage{Key: string(msg.Key), Value: msg.Value, Headers: headers})
	}
	return out
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestPipelineEndToEnd runs the full batch (TSV → derive → CSV, SQLite and
// Kafka sinks) against a real broker and checks every sink received the run.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	input := filepath.Join(dir, "base.txt")
	require.NoError(t, os.WriteFile(input, []byte(labTable), 0o600))

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	repo, err := sqlite.Open(filepath.Join(dir, "flume.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	exporter := csvexport.NewExporter(dir, "", "", discardLogger())
	p := pipeline.New(
		tsv.NewReader(input, discardLogger()),
		pipeline.NewTransformer(domain.NewFlume(0.086, 15), domain.JumpBounds{Upstream: 3, Downstream: 5}, discardLogger()),
		[]pipeline.ResultLoader{exporter, repo, writer},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)

	result, err := p.Run(ctx)
	require.NoError(t, err)

	// Kafka: six station messages then the summary, all keyed by run ID.
	msgs := readPublished(ctx, t, newConsumer(t, broker), len(result.Stations)+1)
	for i, m := range msgs {
		assert.Equal(t, result.RunID, m.Key)
		assert.Equal(t, result.RunID, m.Headers["run_id"])
		_, err := time.Parse(time.RFC3339, m.Headers["processed_at"])
		assert.NoError(t, err, "processed_at should be valid RFC3339")

		if i < len(result.Stations) {
			assert.Equal(t, kafka.RecordStation, m.Headers["record_type"])
			var sm kafka.StationMessage
			require.NoError(t, json.Unmarshal(m.Value, &sm))
			assert.Equal(t, i+1, sm.Station.Seq)
			continue
		}
		assert.Equal(t, kafka.RecordSummary, m.Headers["record_type"])
		var sum kafka.SummaryMessage
		require.NoError(t, json.Unmarshal(m.Value, &sum))
		assert.Equal(t, len(result.Stations), sum.Stations)
		assert.InDelta(t, result.Summary.Y2Theoretical, sum.Summary.Y2Theoretical, 1e-12)
	}

	// SQLite: the run is the latest stored one.
	stored, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, stored.RunID)
	assert.Len(t, stored.Summary, len(domain.SummaryVariables))

	// CSV: both artifacts exist.
	stationsPath, summaryPath := exporter.Paths()
	assert.FileExists(t, stationsPath)
	assert.FileExists(t, summaryPath)
}

// TestPipelineFailurePublishesNothing verifies a run that fails derivation
// never reaches the broker.
func TestPipelineFailurePublishesNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	input := filepath.Join(dir, "base.txt")
	table := labTable + "16.40\t30.0\t1.0\t1.0\t1.0\t1.0\n" // zero depth at station 7
	require.NoError(t, os.WriteFile(input, []byte(table), 0o600))

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		tsv.NewReader(input, discardLogger()),
		pipeline.NewTransformer(domain.NewFlume(0.086, 15), domain.JumpBounds{Upstream: 3, Downstream: 5}, discardLogger()),
		[]pipeline.ResultLoader{writer},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, domain.ErrDivisionByZero)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readCancel()
	_, err = newConsumer(t, broker).ReadMessage(readCtx)
	assert.Error(t, err, "expected no message on sink topic")
}
