// Package stage classifies storage writes into pipeline stages.
package stage

import (
	"errors"
	"fmt"
	"strings"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/service/keys"
)

// Stage is the position of an object in the redaction pipeline.
type Stage int

const (
	// StageUnknown - Write outside the pipeline's buckets.
	StageUnknown Stage = iota
	// StageIngested - Raw audio landed in the audio bucket.
	StageIngested
	// StageTranscribed - Engine output landed in the transcripts bucket.
	StageTranscribed
	// StageRedacted - The pipeline's own write-back. Terminal; never re-enters.
	StageRedacted
	// StageAnalyzed - Transcript scanned for PII.
	StageAnalyzed
	// StageNotified - Side effects for a positive detection were dispatched.
	StageNotified
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageUnknown:
		return "UNKNOWN"
	case StageIngested:
		return "INGESTED"
	case StageTranscribed:
		return "TRANSCRIBED"
	case StageRedacted:
		return "REDACTED"
	case StageAnalyzed:
		return "ANALYZED"
	case StageNotified:
		return "NOTIFIED"
	default:
		return fmt.Sprintf("STAGE(%d)", int(s))
	}
}

// IsTerminal returns true if nothing follows the stage.
func (s Stage) IsTerminal() bool {
	return s == StageRedacted || s == StageNotified || s == StageUnknown
}

// ErrInvalidTransition is returned by Advance for an illegal move.
var ErrInvalidTransition = errors.New("invalid stage transition")

// Advance validates a move between stages.
//
//	INGESTED → (engine) → TRANSCRIBED → ANALYZED → NOTIFIED
//
// INGESTED only advances by a new storage write, so it has no in-process
// successor.
func Advance(from, to Stage) (Stage, error) {
	ok := false
	switch from {
	case StageTranscribed:
		ok = to == StageAnalyzed
	case StageAnalyzed:
		ok = to == StageNotified
	}
	if !ok {
		return from, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// Rules hold what Classify needs to know about the deployment.
type Rules struct {
	AudioBucket       string
	TranscriptsBucket string
	// FunctionIdentity marks writes made by this pipeline. A record whose
	// principal contains it is the pipeline's own output.
	FunctionIdentity string
}

// IsSelfWrite reports whether principal belongs to this pipeline.
func (r Rules) IsSelfWrite(principal string) bool {
	return r.FunctionIdentity != "" && strings.Contains(principal, r.FunctionIdentity)
}

// Classify maps a storage write to a stage. The feedback guard wins over
// bucket routing, and the audio bucket is checked before the transcripts
// bucket. A "<name>-redacted<ext>" key in the audio bucket is a redaction
// write-back whatever its principal, so recordings named that way are never
// transcribed.
func Classify(rec models.StorageRecord, r Rules) Stage {
	if r.IsSelfWrite(rec.UserIdentity.PrincipalID) {
		return StageRedacted
	}
	switch rec.S3.Bucket.Name {
	case r.AudioBucket:
		if keys.IsRedactedAudioKey(rec.S3.Object.Key) {
			return StageRedacted
		}
		return StageIngested
	case r.TranscriptsBucket:
		return StageTranscribed
	default:
		return StageUnknown
	}
}
