package aws

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"speech-pii-redaction-service/internal/service/stt"
)

type fakeAPI struct {
	input *transcribe.StartTranscriptionJobInput
	err   error
	calls int
}

func (f *fakeAPI) StartTranscriptionJob(_ context.Context, in *transcribe.StartTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error) {
	f.calls++
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.StartTranscriptionJobOutput{}, nil
}

func validSpec() stt.JobSpec {
	return stt.JobSpec{
		JobName:      "2b1d3f0e-0c1a-4a8e-9f57-3f5c7c1f0a11",
		LanguageCode: "en-US",
		MediaFormat:  "wav",
		SourceURI:    "s3://audio/call-1.wav",
		OutputBucket: "transcripts",
		OutputKey:    "call-1.wav.json",
		Redaction: stt.RedactionPolicy{
			Enabled:     true,
			EntityTypes: []string{"NAME", "PHONE"},
			Output:      "redacted",
		},
	}
}

func TestAdapter_SubmitJob(t *testing.T) {
	api := &fakeAPI{}
	a := New(api)

	if err := a.SubmitJob(context.Background(), validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := api.input
	if *in.TranscriptionJobName != "2b1d3f0e-0c1a-4a8e-9f57-3f5c7c1f0a11" {
		t.Errorf("unexpected job name %s", *in.TranscriptionJobName)
	}
	if *in.Media.MediaFileUri != "s3://audio/call-1.wav" {
		t.Errorf("unexpected media uri %s", *in.Media.MediaFileUri)
	}
	if *in.OutputBucketName != "transcripts" || *in.OutputKey != "call-1.wav.json" {
		t.Errorf("unexpected output location %s/%s", *in.OutputBucketName, *in.OutputKey)
	}
	if in.LanguageCode != types.LanguageCodeEnUs {
		t.Errorf("expected en-US, got %s", in.LanguageCode)
	}
	if in.MediaFormat != types.MediaFormatWav {
		t.Errorf("expected wav, got %s", in.MediaFormat)
	}

	cr := in.ContentRedaction
	if cr == nil {
		t.Fatal("expected content redaction")
	}
	if cr.RedactionType != types.RedactionTypePii || cr.RedactionOutput != types.RedactionOutputRedacted {
		t.Errorf("unexpected redaction settings %+v", cr)
	}
	if len(cr.PiiEntityTypes) != 2 || cr.PiiEntityTypes[0] != types.PiiEntityTypeName || cr.PiiEntityTypes[1] != types.PiiEntityTypePhone {
		t.Errorf("unexpected entity types %v", cr.PiiEntityTypes)
	}
}

func TestAdapter_SubmitJob_RedactionDisabled(t *testing.T) {
	api := &fakeAPI{}
	spec := validSpec()
	spec.Redaction.Enabled = false

	if err := New(api).SubmitJob(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.input.ContentRedaction != nil {
		t.Error("expected no content redaction")
	}
}

func TestAdapter_SubmitJob_InvalidSpec(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*stt.JobSpec)
		want   string
	}{
		{"language", func(s *stt.JobSpec) { s.LanguageCode = "xx-XX" }, "language code"},
		{"format", func(s *stt.JobSpec) { s.MediaFormat = "aiff" }, "media format"},
		{"entity", func(s *stt.JobSpec) { s.Redaction.EntityTypes = []string{"SHOE_SIZE"} }, "entity type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			spec := validSpec()
			tt.mutate(&spec)

			err := New(api).SubmitJob(context.Background(), spec)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
			if api.calls != 0 {
				t.Errorf("expected no API call, got %d", api.calls)
			}
		})
	}
}

func TestAdapter_SubmitJob_APIError(t *testing.T) {
	apiErr := &types.ConflictException{Message: strPtr("job name exists")}
	err := New(&fakeAPI{err: apiErr}).SubmitJob(context.Background(), validSpec())

	var conflict *types.ConflictException
	if !errors.As(err, &conflict) {
		t.Errorf("expected wrapped ConflictException, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
