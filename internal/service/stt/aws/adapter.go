// Package aws provides an Amazon Transcribe batch adapter with PII redaction.
package aws

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"speech-pii-redaction-service/internal/service/stt"
)

// API is the subset of the Transcribe client the adapter uses.
type API interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
}

// Adapter implements stt.Adapter using Amazon Transcribe.
type Adapter struct {
	api API
}

// New creates a Transcribe adapter.
func New(api API) *Adapter {
	return &Adapter{api: api}
}

// NewClient builds a Transcribe client from an AWS config.
func NewClient(cfg aws.Config) *transcribe.Client {
	return transcribe.NewFromConfig(cfg)
}

// Name implements stt.Adapter.
func (a *Adapter) Name() string { return "aws" }

// SubmitJob implements stt.Adapter.
func (a *Adapter) SubmitJob(ctx context.Context, spec stt.JobSpec) error {
	input, err := buildInput(spec)
	if err != nil {
		return err
	}
	if _, err := a.api.StartTranscriptionJob(ctx, input); err != nil {
		return fmt.Errorf("start transcription job %s: %w", spec.JobName, err)
	}
	return nil
}

func buildInput(spec stt.JobSpec) (*transcribe.StartTranscriptionJobInput, error) {
	lang := types.LanguageCode(spec.LanguageCode)
	if !slices.Contains(lang.Values(), lang) {
		return nil, fmt.Errorf("unsupported language code %q", spec.LanguageCode)
	}
	format := types.MediaFormat(spec.MediaFormat)
	if !slices.Contains(format.Values(), format) {
		return nil, fmt.Errorf("unsupported media format %q", spec.MediaFormat)
	}

	input := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(spec.JobName),
		LanguageCode:         lang,
		MediaFormat:          format,
		Media:                &types.Media{MediaFileUri: aws.String(spec.SourceURI)},
		OutputBucketName:     aws.String(spec.OutputBucket),
		OutputKey:            aws.String(spec.OutputKey),
	}

	if spec.Redaction.Enabled {
		output := types.RedactionOutput(spec.Redaction.Output)
		if output == "" {
			output = types.RedactionOutputRedacted
		}
		entities := make([]types.PiiEntityType, 0, len(spec.Redaction.EntityTypes))
		for _, e := range spec.Redaction.EntityTypes {
			et := types.PiiEntityType(e)
			if !slices.Contains(et.Values(), et) {
				return nil, fmt.Errorf("unsupported PII entity type %q", e)
			}
			entities = append(entities, et)
		}
		input.ContentRedaction = &types.ContentRedaction{
			RedactionType:   types.RedactionTypePii,
			RedactionOutput: output,
			PiiEntityTypes:  entities,
		}
	}

	return input, nil
}
