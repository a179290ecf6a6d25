// Package mock provides a mock STT adapter for running the pipeline without
// cloud credentials. It records submitted jobs and can synthesize a redacted
// transcript into an object store, the way a real engine would on completion.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/service/keys"
	"speech-pii-redaction-service/internal/service/stt"
)

// PIIToken marks words in DefaultUtterances that the engine would redact.
const PIIToken = "{pii}"

// DefaultUtterances provides sample call transcripts for simulation.
var DefaultUtterances = []string{
	"hi my name is {pii} and I want to cancel my subscription",
	"can you help me with my account",
	"sure my card number is {pii} and it expires {pii}",
	"I've been waiting for over an hour",
	"you can call me back on {pii} thank you very much",
}

// wordDuration is the synthetic length of one spoken word.
const wordDuration = 0.5

// Writer stores synthesized transcripts.
type Writer interface {
	Put(ctx context.Context, bucket, key string, data []byte, principal string)
}

// Adapter implements stt.Adapter with recorded, optionally synthesized jobs.
type Adapter struct {
	mu        sync.Mutex
	jobs      []stt.JobSpec
	failures  map[string]error
	writer    Writer
	tag       string
	principal string
	next      int
}

// New creates a mock adapter that only records jobs.
func New() *Adapter {
	return &Adapter{failures: make(map[string]error)}
}

// WithSynthesis makes every accepted job write a transcript through w, with
// PII words replaced by tag and the write attributed to principal.
func (a *Adapter) WithSynthesis(w Writer, tag, principal string) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writer = w
	a.tag = tag
	a.principal = principal
	return a
}

// FailOn makes jobs for sourceURI fail with err.
func (a *Adapter) FailOn(sourceURI string, err error) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[sourceURI] = err
	return a
}

// Name implements stt.Adapter.
func (a *Adapter) Name() string { return "mock" }

// SubmitJob implements stt.Adapter.
func (a *Adapter) SubmitJob(ctx context.Context, spec stt.JobSpec) error {
	a.mu.Lock()
	a.jobs = append(a.jobs, spec)
	if err, ok := a.failures[spec.SourceURI]; ok {
		a.mu.Unlock()
		return err
	}
	w, tag, principal := a.writer, a.tag, a.principal
	utterance := DefaultUtterances[a.next%len(DefaultUtterances)]
	a.next++
	a.mu.Unlock()

	if w == nil {
		return nil
	}

	data, err := json.Marshal(Synthesize(utterance, tag, spec.Redaction.Enabled))
	if err != nil {
		return fmt.Errorf("mock: encode transcript: %w", err)
	}
	w.Put(ctx, spec.OutputBucket, OutputKeyFor(spec), data, principal)
	return nil
}

// OutputKeyFor returns where the engine writes the transcript of spec.
// Redacted output carries the "redacted-" prefix, as Transcribe names it.
func OutputKeyFor(spec stt.JobSpec) string {
	if !spec.Redaction.Enabled {
		return spec.OutputKey
	}
	audioKey := strings.TrimSuffix(spec.OutputKey, keys.TranscriptSuffix)
	return keys.TranscriptKeyFor(audioKey, models.ChannelOnDemand)
}

// Jobs returns a copy of every submitted job spec, in submission order.
func (a *Adapter) Jobs() []stt.JobSpec {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]stt.JobSpec(nil), a.jobs...)
}

// Synthesize builds an engine-shaped transcript document for utterance.
// When redact is false PII words are replaced by a plain placeholder.
func Synthesize(utterance, tag string, redact bool) map[string]any {
	words := strings.Fields(utterance)
	items := make([]models.TranscriptItem, 0, len(words))
	text := make([]string, 0, len(words))

	for i, w := range words {
		start := strconv.FormatFloat(float64(i)*wordDuration, 'f', 2, 64)
		end := strconv.FormatFloat(float64(i+1)*wordDuration, 'f', 2, 64)
		alt := models.Alternative{Confidence: 0.97, Content: w}
		if w == PIIToken {
			if redact {
				alt = models.Alternative{
					Confidence: 0,
					Content:    tag,
					Redactions: []models.Redaction{{Confidence: 0.99, Type: "PII", Category: "PII"}},
				}
			} else {
				alt.Content = "redacted"
			}
		}
		text = append(text, alt.Content)
		items = append(items, models.TranscriptItem{
			StartTime:    models.TimeMark(start),
			EndTime:      models.TimeMark(end),
			Type:         "pronunciation",
			Alternatives: []models.Alternative{alt},
		})
	}

	return map[string]any{
		"status": "COMPLETED",
		"results": models.TranscriptDocument{
			Transcripts: []models.TranscriptText{{Transcript: strings.Join(text, " ")}},
			Items:       items,
		},
	}
}
