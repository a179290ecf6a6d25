// Package keys maps between audio object keys and the keys of the artifacts
// derived from them (transcripts, redacted audio).
package keys

import (
	"path"
	"strings"

	"speech-pii-redaction-service/internal/models"
)

const (
	// TranscriptSuffix is appended to an audio key to name its transcript.
	TranscriptSuffix = ".json"
	// OnDemandPrefix marks transcripts looked up on the on-demand channel.
	OnDemandPrefix = "redacted-"
	// RedactedAudioMarker is inserted before the extension of a redacted copy.
	RedactedAudioMarker = "-redacted"
)

// TranscriptKeyFor returns the transcript object key for an audio key.
func TranscriptKeyFor(audioKey string, ch models.Channel) string {
	if ch == models.ChannelOnDemand {
		return OnDemandPrefix + audioKey + TranscriptSuffix
	}
	return audioKey + TranscriptSuffix
}

// OriginalKeyFor recovers the audio key from a transcript key by stripping a
// leading OnDemandPrefix and a trailing TranscriptSuffix when present.
//
// The strip is unconditional: an audio key that itself begins with
// "redacted-" or ends in ".json" does not round-trip. Use AudioKeyFor when the
// channel is known.
func OriginalKeyFor(transcriptKey string) string {
	k := strings.TrimPrefix(transcriptKey, OnDemandPrefix)
	return strings.TrimSuffix(k, TranscriptSuffix)
}

// TranscriptStorageKey returns the key to fetch from the transcripts bucket
// for an analysis input key. Ingestion inputs are already transcript keys.
func TranscriptStorageKey(inputKey string, ch models.Channel) string {
	if ch == models.ChannelOnDemand {
		return TranscriptKeyFor(inputKey, models.ChannelOnDemand)
	}
	return inputKey
}

// AudioKeyFor returns the audio key an analysis input key refers to.
// On-demand inputs name the audio key directly and are never stripped.
func AudioKeyFor(inputKey string, ch models.Channel) string {
	if ch == models.ChannelOnDemand {
		return inputKey
	}
	return OriginalKeyFor(inputKey)
}

// RedactedAudioKeyFor returns where the redaction worker writes the muted
// copy of audioKey: the same key when overwriting, otherwise
// "<name>-redacted<ext>".
func RedactedAudioKeyFor(audioKey string, overwrite bool) string {
	if overwrite {
		return audioKey
	}
	ext := path.Ext(audioKey)
	return strings.TrimSuffix(audioKey, ext) + RedactedAudioMarker + ext
}

// IsRedactedAudioKey reports whether key looks like a non-overwriting
// redaction write-back.
func IsRedactedAudioKey(key string) bool {
	ext := path.Ext(key)
	return strings.HasSuffix(strings.TrimSuffix(key, ext), RedactedAudioMarker)
}

// S3URI formats an object location.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
