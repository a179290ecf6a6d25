// Package storage defines the object store the pipeline reads transcripts from.
package storage

import (
	"context"

	"speech-pii-redaction-service/internal/models"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = models.ErrNotFound

// ObjectStore reads objects by bucket and key.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}
