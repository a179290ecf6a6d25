// Package stt defines the interface for batch Speech-to-Text engines.
package stt

import "context"

// RedactionPolicy asks the engine to mask PII in its transcript output.
type RedactionPolicy struct {
	Enabled     bool
	EntityTypes []string
	// Output is the engine's output mode, "redacted" for masked-only.
	Output string
}

// JobSpec describes one batch transcription job.
type JobSpec struct {
	JobName      string
	LanguageCode string
	MediaFormat  string
	SourceURI    string
	OutputBucket string
	OutputKey    string
	Redaction    RedactionPolicy
}

// Adapter defines the interface for STT providers (AWS Transcribe, mock).
type Adapter interface {
	// SubmitJob starts a job. It returns once the engine accepted or rejected
	// it; the transcript is written to storage asynchronously.
	SubmitJob(ctx context.Context, spec JobSpec) error

	// Name identifies the provider in logs and metrics.
	Name() string
}
