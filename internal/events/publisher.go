// Package events moves pipeline messages over Kafka: redaction jobs and PII
// detections out, storage notifications in.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/metrics"
)

// Event types carried in the eventType header.
const (
	EventTypeRedaction = "redaction-request"
	EventTypeDetection = "pii-detection"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes redaction requests and detections to separate topics.
type Publisher struct {
	writerRedaction messageWriter
	writerDetection messageWriter
	principal       string
	topicRedaction  string
	topicDetection  string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	RedactionTopic  string
	DetectionsTopic string
	Principal       string
	Enabled         bool
}

// New creates a Kafka publisher. Without brokers or when disabled it runs in
// log-only mode.
func New(cfg *Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicRedaction: cfg.RedactionTopic,
			topicDetection: cfg.DetectionsTopic,
			enabled:        false,
			metrics:        m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicRedaction", cfg.RedactionTopic).
		Str("topicDetection", cfg.DetectionsTopic).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerRedaction: newWriter(cfg.RedactionTopic),
		writerDetection: newWriter(cfg.DetectionsTopic),
		principal:       cfg.Principal,
		topicRedaction:  cfg.RedactionTopic,
		topicDetection:  cfg.DetectionsTopic,
		enabled:         true,
		metrics:         m,
	}
}

// Name identifies the publisher as a side effect.
func (p *Publisher) Name() string { return "kafka" }

// InvokeRedaction publishes a redaction job keyed by the audio key, so every
// job for one recording lands on the same partition.
func (p *Publisher) InvokeRedaction(ctx context.Context, req models.RedactionRequest) error {
	return p.publish(ctx, p.writerRedaction, p.topicRedaction, EventTypeRedaction, req.S3ObjectKey, req)
}

// Notify publishes a positive analysis result to the detections topic.
func (p *Publisher) Notify(ctx context.Context, res *models.AnalysisResult) error {
	return p.publish(ctx, p.writerDetection, p.topicDetection, EventTypeDetection, res.AudioKey, res)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerRedaction != nil {
		if e := p.writerRedaction.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing redaction writer")
			err = e
		}
	}
	if p.writerDetection != nil {
		if e := p.writerDetection.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing detection writer")
			err = e
		}
	}
	return err
}
