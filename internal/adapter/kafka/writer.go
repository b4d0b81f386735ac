package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nordsat/world-mosaic/internal/config"
	"github.com/nordsat/world-mosaic/internal/domain"
)

// Writer announces finished composites on the sink topic.
// It implements aggregator.MosaicPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.MosaicSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishMosaic serializes and publishes one mosaic announcement.
func (w *Writer) PublishMosaic(ctx context.Context, evt domain.MosaicEvent) error {
	msg, err := serializeMosaicEvent(evt)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeMosaicEvent marshals a MosaicEvent into a Kafka message. The
// key groups announcements for the same product and slot onto one
// partition, so consumers see successive saves of a composite in order.
func serializeMosaicEvent(evt domain.MosaicEvent) (kafkago.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize mosaic event: %w", err)
	}
	key := fmt.Sprintf("%s-%s", evt.ProductName, evt.NominalTime.Format(time.RFC3339))
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "productname", Value: []byte(evt.ProductName)},
			{Key: "produced_at", Value: []byte(evt.ProducedAt.Format(time.RFC3339))},
		},
	}, nil
}
