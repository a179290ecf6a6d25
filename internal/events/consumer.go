package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/observability/metrics"
)

// EventHandler routes a decoded storage notification.
type EventHandler interface {
	HandleStorageEvent(ctx context.Context, ev models.StorageEvent) []models.RecordOutcome
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds storage-notification consumer settings.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads bucket notifications from Kafka and hands them to a
// handler. Offsets are committed after handling, so delivery is
// at-least-once.
type Consumer struct {
	reader  messageReader
	handler EventHandler
	topic   string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewConsumer creates a consumer-group reader on cfg.Topic.
func NewConsumer(cfg ConsumerConfig, h EventHandler, m *metrics.Metrics) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})
	return newConsumer(reader, cfg.Topic, h, m)
}

func newConsumer(r messageReader, topic string, h EventHandler, m *metrics.Metrics) *Consumer {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Consumer{
		reader:  r,
		handler: h,
		topic:   topic,
		metrics: m,
		logger:  logging.WithComponent("storage-consumer"),
	}
}

// Run consumes until ctx is cancelled or the reader fails. Cancellation is
// not an error.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Str("topic", c.topic).Msg("Storage event consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.metrics.RecordKafkaConsume(c.topic, "fetch")
			c.logger.Error().Err(err).Msg("Failed to fetch storage event")
			return err
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.metrics.RecordKafkaConsume(c.topic, "commit")
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit storage event")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ev, err := DecodeStorageEvent(msg.Value)
	if err != nil {
		// Undecodable messages are committed and skipped.
		c.metrics.RecordKafkaConsume(c.topic, "decode")
		c.logger.Warn().
			Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Skipping undecodable storage event")
		return
	}

	c.metrics.RecordKafkaConsume(c.topic, "")
	outcomes := c.handler.HandleStorageEvent(ctx, ev)
	c.logger.Debug().
		Int64("offset", msg.Offset).
		Int("records", len(ev.Records)).
		Int("outcomes", len(outcomes)).
		Msg("Storage event handled")
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
