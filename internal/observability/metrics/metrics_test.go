package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSideEffect(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSideEffect("redaction", true, nil)
	m.RecordSideEffect("redaction", true, errors.New("boom"))
	m.RecordSideEffect("slack", false, nil)

	tests := []struct {
		effect, status string
		expected       float64
	}{
		{"redaction", "ok", 1},
		{"redaction", "failed", 1},
		{"slack", "skipped", 1},
		{"slack", "ok", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.SideEffectsTotal.WithLabelValues(tt.effect, tt.status))
		if got != tt.expected {
			t.Errorf("%s/%s: expected %v, got %v", tt.effect, tt.status, tt.expected, got)
		}
	}
}

func TestRecordTranscriptionJob(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTranscriptionJob("aws", nil, 0.1)
	m.RecordTranscriptionJob("aws", nil, 0.2)
	m.RecordTranscriptionJob("aws", errors.New("throttled"), 0.3)

	if got := testutil.ToFloat64(m.TranscriptionJobsTotal.WithLabelValues("aws", "started")); got != 2 {
		t.Errorf("expected 2 started, got %v", got)
	}
	if got := testutil.ToFloat64(m.TranscriptionJobsTotal.WithLabelValues("aws", "failed")); got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}
}

func TestRecordKafkaConsume(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordKafkaConsume("storage-events", "")
	m.RecordKafkaConsume("storage-events", "decode")

	if got := testutil.ToFloat64(m.KafkaConsumeTotal.WithLabelValues("storage-events")); got != 1 {
		t.Errorf("expected 1 consumed, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaConsumeErrors.WithLabelValues("storage-events", "decode")); got != 1 {
		t.Errorf("expected 1 decode error, got %v", got)
	}
}

func TestNewMetrics_IsolatedRegistries(t *testing.T) {
	// Two instances on separate registries must not collide.
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())
	a.RecordStorageEvent("SKIPPED_S3_EVENT")

	if got := testutil.ToFloat64(b.StorageEventsTotal.WithLabelValues("SKIPPED_S3_EVENT")); got != 0 {
		t.Errorf("expected isolated counter, got %v", got)
	}
}
