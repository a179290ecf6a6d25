// Package models defines the data structures shared across the redaction pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TranscriptDocument is the subset of a transcription engine's output the
// pipeline reads. Engines write it either wrapped in a "results" object or
// flat; see pii.Parse.
type TranscriptDocument struct {
	Transcripts []TranscriptText `json:"transcripts"`
	Items       []TranscriptItem `json:"items"`
}

// TranscriptText holds the full transcript string.
type TranscriptText struct {
	Transcript string `json:"transcript"`
}

// TranscriptItem is a single recognized token.
type TranscriptItem struct {
	StartTime    TimeMark      `json:"start_time,omitempty"`
	EndTime      TimeMark      `json:"end_time,omitempty"`
	Type         string        `json:"type,omitempty"`
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is one candidate rendering of an item.
type Alternative struct {
	Confidence Confidence  `json:"confidence"`
	Content    string      `json:"content"`
	Redactions []Redaction `json:"redactions,omitempty"`
}

// Redaction describes why an alternative was masked by the engine.
type Redaction struct {
	Confidence Confidence `json:"confidence"`
	Type       string     `json:"type"`
	Category   string     `json:"category"`
}

// TimeMark is an engine timestamp in seconds, kept in its textual form so
// downstream consumers see exactly what the engine wrote ("1.0" stays "1.0").
// Numeric JSON values are accepted and kept verbatim.
type TimeMark string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (t *TimeMark) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TimeMark(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("time mark: %w", err)
	}
	*t = TimeMark(n.String())
	return nil
}

// Seconds parses the mark as a float. Empty marks return 0.
func (t TimeMark) Seconds() (float64, error) {
	if t == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(t), 64)
}

// Confidence is a score in [0,1]. Engines emit it as a number or a string.
type Confidence float64

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*c = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("confidence: %w", err)
		}
		*c = Confidence(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	*c = Confidence(f)
	return nil
}
