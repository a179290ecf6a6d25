package events

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"speech-pii-redaction-service/internal/models"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	err := r.fetchErr
	r.mu.Unlock()
	if err != nil {
		return kafka.Message{}, err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []models.StorageEvent
}

func (h *recordingHandler) HandleStorageEvent(_ context.Context, ev models.StorageEvent) []models.RecordOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

const s3Notification = `{"Records":[{"eventSource":"aws:s3","eventName":"ObjectCreated:Put","userIdentity":{"principalId":"AWS:user"},"s3":{"bucket":{"name":"audio"},"object":{"key":"call-1.wav"}}}]}`

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(s3Notification)},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: []byte(s3Notification)},
	}}
	handler := &recordingHandler{}
	m := testMetrics()
	c := newConsumer(reader, "storage-events", handler, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("expected nil on cancellation, got %v", err)
	}
	if got := reader.commits(); len(got) != 3 {
		t.Errorf("expected all 3 offsets committed, got %v", got)
	}
	if handler.count() != 2 {
		t.Errorf("expected 2 handled events, got %d", handler.count())
	}
	if got := testutil.ToFloat64(m.KafkaConsumeErrors.WithLabelValues("storage-events", "decode")); got != 1 {
		t.Errorf("expected 1 decode error, got %v", got)
	}
	if handler.events[0].Records[0].S3.Object.Key != "call-1.wav" {
		t.Errorf("unexpected decoded event %+v", handler.events[0])
	}
}

func TestConsumer_FetchError(t *testing.T) {
	boom := errors.New("group coordinator not available")
	c := newConsumer(&fakeReader{fetchErr: boom}, "storage-events", &recordingHandler{}, testMetrics())

	if err := c.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestDecodeStorageEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		records int
		wantErr bool
	}{
		{"raw", s3Notification, 1, false},
		{"sns envelope", `{"Type":"Notification","Message":` + strconv.Quote(s3Notification) + `}`, 1, false},
		{"test event", `{"Service":"Amazon S3","Event":"s3:TestEvent"}`, 0, false},
		{"garbage", `{{`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeStorageEvent([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, models.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(ev.Records) != tt.records {
				t.Errorf("expected %d records, got %d", tt.records, len(ev.Records))
			}
		})
	}
}
