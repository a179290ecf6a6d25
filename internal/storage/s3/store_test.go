package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"speech-pii-redaction-service/internal/storage"
)

type fakeAPI struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *fakeAPI) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.bucket = *in.Bucket
	f.key = *in.Key
	if f.err != nil {
		return nil, f.err
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestStore_Get(t *testing.T) {
	api := &fakeAPI{body: `{"transcripts":[]}`}
	s := New(api)

	data, err := s.Get(context.Background(), "transcripts", "call-1.wav.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"transcripts":[]}` {
		t.Errorf("unexpected body %q", data)
	}
	if api.bucket != "transcripts" || api.key != "call-1.wav.json" {
		t.Errorf("unexpected request %s/%s", api.bucket, api.key)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed", &types.NoSuchKey{}},
		{"generic api error", &smithy.GenericAPIError{Code: "NotFound", Message: "head miss"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeAPI{err: tt.err})
			_, err := s.Get(context.Background(), "b", "k")
			if !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_Get_OtherError(t *testing.T) {
	s := New(&fakeAPI{err: errors.New("connection reset")})
	_, err := s.Get(context.Background(), "b", "k")
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected a non-NotFound error, got %v", err)
	}
}
