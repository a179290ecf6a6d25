package models

import "encoding/json"

// Channel identifies how an analysis was triggered.
type Channel string

const (
	// ChannelIngestion is the storage-event driven path. Its input key is the
	// transcript object key written by the transcription engine.
	ChannelIngestion Channel = "ingestion"
	// ChannelOnDemand is the HTTP path. Its input key is the audio object key.
	ChannelOnDemand Channel = "on-demand"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelIngestion || c == ChannelOnDemand
}

// PiiOccurrence is one redacted token found in a transcript.
type PiiOccurrence struct {
	Tag        string      `json:"type"`
	StartTime  TimeMark    `json:"start_time"`
	EndTime    TimeMark    `json:"end_time"`
	Category   string      `json:"category,omitempty"`
	Confidence Confidence  `json:"confidence"`
	Redactions []Redaction `json:"redactions,omitempty"`
}

// MuteInterval is an audio span the redaction worker silences.
type MuteInterval struct {
	StartTime TimeMark `json:"start_time"`
	EndTime   TimeMark `json:"end_time"`
}

// AnalysisResult is the outcome of a successful analysis, positive or not.
type AnalysisResult struct {
	Message             string          `json:"message"`
	ContainsPII         bool            `json:"containsPII"`
	Channel             Channel         `json:"channel"`
	AudioURI            string          `json:"audioUri"`
	TranscriptURI       string          `json:"transcriptUri"`
	RedactedAudioURI    string          `json:"redactedAudioUri,omitempty"`
	RedactOriginalAudio bool            `json:"redactOriginalAudio,omitempty"`
	RedactionTriggered  bool            `json:"redactionTriggered"`
	TranscriptText      string          `json:"transcriptText,omitempty"`
	PiiOccurrences      []PiiOccurrence `json:"piiOccurrences,omitempty"`
	MuteIntervals       []MuteInterval  `json:"muteIntervals,omitempty"`

	// AudioKey is the recording; Bucket is the transcripts bucket that
	// produced the detection.
	AudioKey string `json:"-"`
	Bucket   string `json:"-"`

	SideEffects []SideEffectOutcome `json:"-"`
}

// ErrorResult is the structured failure returned in place of an AnalysisResult.
type ErrorResult struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

// AnalysisResponse carries exactly one of Result or Failure.
type AnalysisResponse struct {
	Result  *AnalysisResult
	Failure *ErrorResult
}

// OK reports whether the analysis produced a result.
func (r AnalysisResponse) OK() bool {
	return r.Failure == nil && r.Result != nil
}

// MarshalJSON renders whichever half is set.
func (r AnalysisResponse) MarshalJSON() ([]byte, error) {
	if r.Failure != nil {
		return json.Marshal(r.Failure)
	}
	return json.Marshal(r.Result)
}

// SideEffectOutcome records what happened to one best-effort action.
type SideEffectOutcome struct {
	Name      string
	Attempted bool
	Err       error
}

// RedactionRequest is the payload handed to the redaction worker.
type RedactionRequest struct {
	S3ObjectKey    string         `json:"s3ObjectKey"`
	Bucket         string         `json:"bucket,omitempty"`
	OutputKey      string         `json:"outputKey,omitempty"`
	MuteTimeStamps []MuteInterval `json:"muteTimeStamps"`
}
