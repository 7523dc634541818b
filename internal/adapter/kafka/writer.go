package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/grid-reliability-etl/internal/config"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer mirrors published dataset files onto a Kafka topic.
// It implements output.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured dataset topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchBytes:   16 << 20,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish sends one document as a single message keyed by its file name, so
// compaction keeps only the latest version of each file.
func (w *Writer) Publish(ctx context.Context, doc output.Document) error {
	if err := w.writer.WriteMessages(ctx, serializeToMessage(doc, domain.Now())); err != nil {
		return fmt.Errorf("publish %s to kafka: %w", doc.Name, err)
	}
	w.logger.Debug("document mirrored to kafka", "file", doc.Name, "bytes", len(doc.Body))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(doc output.Document, publishedAt time.Time) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(doc.Name),
		Value: doc.Body,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(doc.Name)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}
}
