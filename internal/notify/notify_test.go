package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/metrics"
)

func positiveResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Message:        "Analysis complete",
		ContainsPII:    true,
		AudioURI:       "s3://audio/call-1.wav",
		TranscriptURI:  "s3://transcripts/call-1.wav.json",
		TranscriptText: "my name is [PII]",
		AudioKey:       "call-1.wav",
		Bucket:         "transcripts",
	}
}

func testOptions(m *metrics.Metrics) Options {
	return Options{Timeout: time.Second, MaxRetryTime: time.Second, Metrics: m}
}

func TestWebhook_PostsResult(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, testOptions(metrics.NewMetrics(prometheus.NewRegistry())))
	if err := wh.Notify(context.Background(), positiveResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["containsPII"] != true {
		t.Errorf("expected containsPII true, got %v", got["containsPII"])
	}
	if got["audioUri"] != "s3://audio/call-1.wav" {
		t.Errorf("unexpected audioUri %v", got["audioUri"])
	}
}

func TestSlack_PostsText(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, testOptions(metrics.NewMetrics(prometheus.NewRegistry())))
	if err := s.Notify(context.Background(), positiveResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msg slackMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		t.Fatalf("body did not decode: %v", err)
	}
	expected := "PII detected in Call Recording:\n\nKey: *call-1.wav*.\n\nBucket: *transcripts*"
	if msg.Text != expected {
		t.Errorf("expected %q, got %q", expected, msg.Text)
	}
}

func TestNotifiers_EmptyURLIsNoop(t *testing.T) {
	opts := testOptions(metrics.NewMetrics(prometheus.NewRegistry()))
	notifiers := []interface {
		Notifier
		Enabled() bool
	}{NewWebhook("", opts), NewSlack("", opts)}

	for _, n := range notifiers {
		if n.Enabled() {
			t.Errorf("%s: expected disabled", n.Name())
		}
		if err := n.Notify(context.Background(), positiveResult()); err != nil {
			t.Errorf("%s: expected no error, got %v", n.Name(), err)
		}
	}
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	wh := NewWebhook(srv.URL, Options{Timeout: time.Second, MaxRetryTime: 5 * time.Second, Metrics: m})
	if err := wh.Notify(context.Background(), positiveResult()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if got := testutil.ToFloat64(m.NotificationAttempts.WithLabelValues("webhook")); got != 3 {
		t.Errorf("expected 3 counted attempts, got %v", got)
	}
}

func TestWebhook_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such hook", http.StatusNotFound)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, testOptions(metrics.NewMetrics(prometheus.NewRegistry())))
	err := wh.Notify(context.Background(), positiveResult())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestWebhook_NoRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, Options{Timeout: time.Second, Metrics: metrics.NewMetrics(prometheus.NewRegistry())})
	if err := wh.Notify(context.Background(), positiveResult()); err == nil {
		t.Error("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt without a retry budget, got %d", calls.Load())
	}
}

func TestSlackText(t *testing.T) {
	got := SlackText("dir/call.wav", "bucket-a")
	if got != "PII detected in Call Recording:\n\nKey: *dir/call.wav*.\n\nBucket: *bucket-a*" {
		t.Errorf("unexpected text %q", got)
	}
}
