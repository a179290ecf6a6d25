package models

import "errors"

// Error kinds surfaced by the pipeline. Callers wrap these with
// fmt.Errorf("...: %w", err) and classify with Kind.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("object not found")
	ErrMalformedTranscript = errors.New("malformed transcript")
	ErrDispatch            = errors.New("transcription dispatch failed")
	ErrSideEffect          = errors.New("side effect failed")
)

// Kind returns a stable label for err, used in responses and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedTranscript):
		return "malformed_transcript"
	case errors.Is(err, ErrDispatch):
		return "dispatch"
	case errors.Is(err, ErrSideEffect):
		return "side_effect"
	default:
		return "internal"
	}
}
