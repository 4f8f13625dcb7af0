package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flume-jump-etl/internal/config"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Record types carried in the record_type header.
const (
	RecordStation = "station"
	RecordSummary = "summary"
)

// StationMessage is the value of one per-station message.
type StationMessage struct {
	RunID       string               `json:"run_id"`
	ProcessedAt time.Time            `json:"processed_at"`
	Station     domain.StationRecord `json:"station"`
}

// SummaryMessage is the value of the single per-run summary message.
type SummaryMessage struct {
	RunID       string             `json:"run_id"`
	ProcessedAt time.Time          `json:"processed_at"`
	Flume       domain.Flume       `json:"flume"`
	Stations    int                `json:"stations"`
	Summary     domain.JumpSummary `json:"summary"`
}

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes run results to a Kafka topic.
// It implements pipeline.ResultLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Load publishes one message per station followed by the summary message, all
// keyed by run ID so they land on the same partition in order. They are sent
// in a single WriteMessages call.
func (w *Writer) Load(ctx context.Context, result domain.Result) error {
	msgs, err := resultMessages(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish run %s: %w", result.RunID, err)
	}
	w.logger.Info("result published", "run_id", result.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func resultMessages(result domain.Result) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(result.Stations)+1)
	for i := range result.Stations {
		msg, err := serializeToMessage(result.RunID, result.ProcessedAt, RecordStation, StationMessage{
			RunID:       result.RunID,
			ProcessedAt: result.ProcessedAt,
			Station:     result.Stations[i],
		})
		if err != nil {
			return nil, fmt.Errorf("station %d: %w", result.Stations[i].Seq, err)
		}
		msgs = append(msgs, msg)
	}

	msg, err := serializeToMessage(result.RunID, result.ProcessedAt, RecordSummary, SummaryMessage{
		RunID:       result.RunID,
		ProcessedAt: result.ProcessedAt,
		Flume:       result.Flume,
		Stations:    len(result.Stations),
		Summary:     result.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return append(msgs, msg), nil
}

// serializeToMessage marshals a payload into a Kafka message keyed by run ID.
func serializeToMessage(runID string, processedAt time.Time, recordType string, payload any) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", recordType, err)
	}
	return kafkago.Message{
		Key:   []byte(runID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
