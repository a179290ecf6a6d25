// Package pii turns a redacted transcript into PII occurrences and the audio
// intervals that must be muted.
package pii

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"speech-pii-redaction-service/internal/models"
)

// ErrEmptyTag is returned when no redaction tag is configured.
var ErrEmptyTag = errors.New("pii: redaction tag is empty")

// Extraction is the result of scanning a transcript.
type Extraction struct {
	Text          string
	Occurrences   []models.PiiOccurrence
	MuteIntervals []models.MuteInterval
}

type wrappedDocument struct {
	Results *models.TranscriptDocument `json:"results"`
}

// Parse decodes a transcript document. Both the engine's native
// {"results": {...}} wrapper and the flat form are accepted.
func Parse(data []byte) (*models.TranscriptDocument, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", models.ErrMalformedTranscript)
	}

	var wrapped wrappedDocument
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedTranscript, err)
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}

	var doc models.TranscriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedTranscript, err)
	}
	return &doc, nil
}

// Extract scans doc for alternatives whose content equals tag. Every match
// yields one occurrence and one mute interval, in item order. Duplicates and
// adjacent intervals are kept as-is.
func Extract(doc *models.TranscriptDocument, tag string) (*Extraction, error) {
	if tag == "" {
		return nil, ErrEmptyTag
	}
	if doc == nil || len(doc.Transcripts) == 0 {
		return nil, fmt.Errorf("%w: no transcript text", models.ErrMalformedTranscript)
	}

	ex := &Extraction{
		Text:          doc.Transcripts[0].Transcript,
		Occurrences:   []models.PiiOccurrence{},
		MuteIntervals: []models.MuteInterval{},
	}

	for _, item := range doc.Items {
		for _, alt := range item.Alternatives {
			if alt.Content != tag {
				continue
			}
			occ := models.PiiOccurrence{
				Tag:        tag,
				StartTime:  item.StartTime,
				EndTime:    item.EndTime,
				Confidence: alt.Confidence,
				Redactions: alt.Redactions,
			}
			if len(alt.Redactions) > 0 {
				occ.Category = alt.Redactions[0].Category
				occ.Confidence = alt.Redactions[0].Confidence
			}
			ex.Occurrences = append(ex.Occurrences, occ)
			ex.MuteIntervals = append(ex.MuteIntervals, models.MuteInterval{
				StartTime: item.StartTime,
				EndTime:   item.EndTime,
			})
		}
	}

	return ex, nil
}

// ParseAndExtract is Parse followed by Extract.
func ParseAndExtract(data []byte, tag string) (*Extraction, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Extract(doc, tag)
}

// ContainsPII reports whether text contains the redaction tag. This is the
// gate that decides whether a recording is treated as sensitive.
func ContainsPII(text, tag string) bool {
	if tag == "" {
		return false
	}
	return strings.Contains(text, tag)
}
