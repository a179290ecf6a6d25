package mock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"speech-pii-redaction-service/internal/service/pii"
	"speech-pii-redaction-service/internal/service/stt"
)

type testWriter struct {
	mu     sync.Mutex
	writes map[string][]byte
	actor  string
}

func (w *testWriter) Put(_ context.Context, bucket, key string, data []byte, principal string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writes == nil {
		w.writes = make(map[string][]byte)
	}
	w.writes[bucket+"/"+key] = data
	w.actor = principal
}

func spec(uri, key string) stt.JobSpec {
	return stt.JobSpec{
		JobName:      "job",
		SourceURI:    uri,
		OutputBucket: "transcripts",
		OutputKey:    key,
		Redaction:    stt.RedactionPolicy{Enabled: true},
	}
}

func TestAdapter_RecordsJobs(t *testing.T) {
	a := New()
	ctx := context.Background()

	_ = a.SubmitJob(ctx, spec("s3://audio/a.wav", "a.wav.json"))
	_ = a.SubmitJob(ctx, spec("s3://audio/b.wav", "b.wav.json"))

	jobs := a.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].SourceURI != "s3://audio/a.wav" || jobs[1].SourceURI != "s3://audio/b.wav" {
		t.Errorf("unexpected job order %+v", jobs)
	}
	if a.Name() != "mock" {
		t.Errorf("expected name mock, got %s", a.Name())
	}
}

func TestAdapter_FailOn(t *testing.T) {
	boom := errors.New("quota exceeded")
	a := New().FailOn("s3://audio/bad.wav", boom)

	if err := a.SubmitJob(context.Background(), spec("s3://audio/bad.wav", "bad.wav.json")); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	if err := a.SubmitJob(context.Background(), spec("s3://audio/ok.wav", "ok.wav.json")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAdapter_Synthesis(t *testing.T) {
	w := &testWriter{}
	a := New().WithSynthesis(w, "[PII]", "mock-stt")

	if err := a.SubmitJob(context.Background(), spec("s3://audio/a.wav", "a.wav.json")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, ok := w.writes["transcripts/redacted-a.wav.json"]
	if !ok {
		t.Fatalf("expected transcript write, got %v", w.writes)
	}
	if w.actor != "mock-stt" {
		t.Errorf("expected principal mock-stt, got %s", w.actor)
	}

	ex, err := pii.ParseAndExtract(data, "[PII]")
	if err != nil {
		t.Fatalf("synthesized transcript did not parse: %v", err)
	}
	// The first utterance carries one PII word.
	if len(ex.Occurrences) != 1 {
		t.Errorf("expected 1 occurrence, got %d", len(ex.Occurrences))
	}
	if !pii.ContainsPII(ex.Text, "[PII]") {
		t.Errorf("expected tag in text %q", ex.Text)
	}
}

func TestOutputKeyFor(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		redact bool
		want   string
	}{
		{"redacted", "call-1.wav.json", true, "redacted-call-1.wav.json"},
		{"redacted with plus", "call+1.wav.json", true, "redacted-call+1.wav.json"},
		{"plain", "call-1.wav.json", false, "call-1.wav.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := spec("s3://audio/x.wav", tt.key)
			s.Redaction.Enabled = tt.redact
			if got := OutputKeyFor(s); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSynthesize(t *testing.T) {
	doc := Synthesize("call {pii} now", "[PII]", true)
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex, err := pii.ParseAndExtract(data, "[PII]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.Text != "call [PII] now" {
		t.Errorf("unexpected text %q", ex.Text)
	}
	if len(ex.MuteIntervals) != 1 || ex.MuteIntervals[0].StartTime != "0.50" || ex.MuteIntervals[0].EndTime != "1.00" {
		t.Errorf("unexpected intervals %+v", ex.MuteIntervals)
	}
}

func TestSynthesize_Unredacted(t *testing.T) {
	data, _ := json.Marshal(Synthesize("call {pii} now", "[PII]", false))
	if strings.Contains(string(data), "[PII]") {
		t.Errorf("expected no tag when redaction is off, got %s", data)
	}
}
