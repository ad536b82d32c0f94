// Package kafka publishes classified sample points to a sink topic for
// downstream consumers. The exporter is optional and feature-flagged.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/DEMONNN69/hmpi-map-engine/internal/config"
	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
)

// Writer produces classified sample points to a Kafka topic.
// It implements aggregate.Exporter.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// ExportBatch serializes and publishes a merged page of points in a single
// WriteMessages call for efficiency.
func (w *Writer) ExportBatch(ctx context.Context, points []domain.SamplePoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(points))
	for i := range points {
		msg, err := serializeToMessage(points[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SamplePoint into a Kafka message. The key is
// the sample id, so re-merged points compact to their latest classification.
func serializeToMessage(point domain.SamplePoint) (kafkago.Message, error) {
	data, err := json.Marshal(point)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sample point: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(point.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "quality_category", Value: []byte(point.Category.String())},
			{Key: "fetched_at", Value: []byte(point.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
