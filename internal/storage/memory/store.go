// Package memory is an in-process object store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/storage"
)

// WriteHook observes writes as S3-format notifications.
type WriteHook func(ev models.StorageEvent)

// Store is a thread-safe map of bucket/key to bytes.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	hook    WriteHook
}

// New creates an empty store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// OnWrite registers a hook fired after every Put.
func (s *Store) OnWrite(h WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Put stores data and notifies the hook with principal as the writer.
func (s *Store) Put(_ context.Context, bucket, key string, data []byte, principal string) {
	s.mu.Lock()
	s.objects[bucket+"/"+key] = append([]byte(nil), data...)
	h := s.hook
	s.mu.Unlock()

	if h != nil {
		h(models.StorageEvent{Records: []models.StorageRecord{{
			EventSource:  "aws:s3",
			EventName:    "ObjectCreated:Put",
			UserIdentity: models.UserIdentity{PrincipalID: principal},
			S3: models.S3Entity{
				Bucket: models.S3Bucket{Name: bucket},
				Object: models.S3Object{Key: encodeKey(key), Size: int64(len(data))},
			},
		}}})
	}
}

// encodeKey form-encodes key the way S3 does in notifications, leaving the
// path separators alone.
func encodeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.QueryEscape(p)
	}
	return strings.Join(parts, "/")
}

// Get returns a copy of the stored object.
func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
