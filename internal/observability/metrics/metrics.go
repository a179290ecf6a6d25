// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_pii_redaction"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Storage event metrics
	StorageEventsTotal *prometheus.CounterVec

	// Transcription dispatch metrics
	TranscriptionJobsTotal *prometheus.CounterVec
	DispatchLatency        *prometheus.HistogramVec

	// Analysis metrics
	AnalysesTotal        *prometheus.CounterVec
	AnalysisDuration     prometheus.Histogram
	PIIOccurrences       prometheus.Histogram
	SignalDisagreements  prometheus.Counter
	SideEffectsTotal     *prometheus.CounterVec
	NotificationAttempts *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Kafka consume metrics
	KafkaConsumeTotal  *prometheus.CounterVec
	KafkaConsumeErrors *prometheus.CounterVec

	// Front door metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	GRPCRequestsTotal   *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StorageEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_events_total",
			Help:      "Storage event records handled, by outcome",
		}, []string{"event"}),

		TranscriptionJobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_jobs_total",
			Help:      "Transcription jobs submitted, by status",
		}, []string{"provider", "status"}),
		DispatchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_dispatch_latency_seconds",
			Help:      "Latency of a single transcription job submission",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider"}),

		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Transcript analyses, by channel and result",
		}, []string{"channel", "result"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing one transcript, side effects included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		PIIOccurrences: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pii_occurrences",
			Help:      "PII occurrences per positive transcript",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		SignalDisagreements: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pii_signal_disagreements_total",
			Help:      "Transcripts where the text gate and the item scan disagree",
		}),
		SideEffectsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Best-effort side effects, by effect and status",
		}, []string{"effect", "status"}),
		NotificationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_attempts_total",
			Help:      "HTTP notification attempts including retries",
		}, []string{"notifier"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		KafkaConsumeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consume_total",
			Help:      "Storage notification messages consumed",
		}, []string{"topic"}),
		KafkaConsumeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consume_errors_total",
			Help:      "Storage notification messages that failed to decode or commit",
		}, []string{"topic", "reason"}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GRPCRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC unary calls, by method and code",
		}, []string{"method", "code"}),
	}
}

// RecordStorageEvent records one routed storage record.
func (m *Metrics) RecordStorageEvent(event string) {
	m.StorageEventsTotal.WithLabelValues(event).Inc()
}

// RecordTranscriptionJob records a job submission attempt.
func (m *Metrics) RecordTranscriptionJob(provider string, err error, latencySeconds float64) {
	status := "started"
	if err != nil {
		status = "failed"
	}
	m.TranscriptionJobsTotal.WithLabelValues(provider, status).Inc()
	m.DispatchLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordAnalysis records a finished analysis. result is "pii", "clean" or an
// error kind.
func (m *Metrics) RecordAnalysis(channel, result string, durationSeconds float64) {
	m.AnalysesTotal.WithLabelValues(channel, result).Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordPIIOccurrences records the occurrence count of a positive transcript.
func (m *Metrics) RecordPIIOccurrences(n int) {
	m.PIIOccurrences.Observe(float64(n))
}

// RecordSignalDisagreement records a text-gate vs. item-scan mismatch.
func (m *Metrics) RecordSignalDisagreement() {
	m.SignalDisagreements.Inc()
}

// RecordSideEffect records the outcome of one best-effort action.
func (m *Metrics) RecordSideEffect(effect string, attempted bool, err error) {
	status := "ok"
	switch {
	case !attempted:
		status = "skipped"
	case err != nil:
		status = "failed"
	}
	m.SideEffectsTotal.WithLabelValues(effect, status).Inc()
}

// RecordNotificationAttempt records one HTTP attempt by a notifier.
func (m *Metrics) RecordNotificationAttempt(notifier string) {
	m.NotificationAttempts.WithLabelValues(notifier).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordKafkaConsume records a consumed message, or a failure when reason is set.
func (m *Metrics) RecordKafkaConsume(topic, reason string) {
	if reason != "" {
		m.KafkaConsumeErrors.WithLabelValues(topic, reason).Inc()
		return
	}
	m.KafkaConsumeTotal.WithLabelValues(topic).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, code string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordGRPCRequest records one unary gRPC call.
func (m *Metrics) RecordGRPCRequest(method, code string) {
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}
