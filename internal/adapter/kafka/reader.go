package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nordsat/world-mosaic/internal/config"
	"github.com/nordsat/world-mosaic/internal/domain"
)

// Reader consumes tile notifications from the source topics.
// It implements aggregator.EventSource.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer subscribed to all configured tile
// topics as one consumer group.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupTopics: cfg.TileTopics,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, logger: logger}
}

// Poll waits up to the given duration for the next tile notification.
// It returns (nil, nil) when no message arrived in time and on malformed
// payloads, which are logged and skipped rather than retried.
func (r *Reader) Poll(ctx context.Context, wait time.Duration) (*domain.TileEvent, error) {
	readCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	msg, err := r.reader.ReadMessage(readCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, err
	}

	evt, err := mapMessageToTileEvent(msg)
	if err != nil {
		r.logger.Warn("skipping malformed tile notification",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return nil, nil
	}
	return evt, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToTileEvent decodes a Kafka message into a TileEvent.
func mapMessageToTileEvent(msg kafkago.Message) (*domain.TileEvent, error) {
	evt, err := domain.ParseTileEvent(msg.Value)
	if err != nil {
		return nil, err
	}
	return &evt, nil
}
