// Package analysis decides whether a transcript contains PII and triggers the
// follow-up actions for recordings that do.
package analysis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/notify"
	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/observability/metrics"
	"speech-pii-redaction-service/internal/service/keys"
	"speech-pii-redaction-service/internal/service/pii"
	"speech-pii-redaction-service/internal/service/redaction"
	"speech-pii-redaction-service/internal/storage"
)

// Messages returned to callers.
const (
	MessageAnalyzed = "Analysis complete"
	MessageNoPII    = "No PII detected in call recording"
	MessageFailed   = "Error analyzing audio recording"
)

// Policy gates the side effects of a positive detection.
type Policy struct {
	RedactAudio       bool
	OverwriteOriginal bool
	Notify            bool
	// Channels lists the channels whose detections trigger side effects.
	Channels []models.Channel
}

// Allows reports whether detections on ch trigger side effects.
func (p Policy) Allows(ch models.Channel) bool {
	return slices.Contains(p.Channels, ch)
}

// Config holds orchestrator settings.
type Config struct {
	AudioBucket       string
	TranscriptsBucket string
	RedactionTag      string
	Policy            Policy
}

// Orchestrator runs the analysis state machine for one transcript at a time.
// It is safe for concurrent use.
type Orchestrator struct {
	store     storage.ObjectStore
	invoker   redaction.Invoker
	notifiers []notify.Notifier
	cfg       Config
	metrics   *metrics.Metrics
}

// New creates an orchestrator. invoker may be nil when redaction is never
// enabled.
func New(store storage.ObjectStore, invoker redaction.Invoker, notifiers []notify.Notifier, cfg Config, m *metrics.Metrics) *Orchestrator {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Orchestrator{
		store:     store,
		invoker:   invoker,
		notifiers: notifiers,
		cfg:       cfg,
		metrics:   m,
	}
}

// Analyze fetches the transcript for inputKey, scans it for PII and, for
// positive recordings, fires the side effects the policy allows. It never
// returns a Go error: failures come back as an ErrorResult. Side-effect
// failures are logged and never change the result.
func (o *Orchestrator) Analyze(ctx context.Context, inputKey string, ch models.Channel) models.AnalysisResponse {
	start := time.Now()
	logger := logging.WithRecording("analysis", inputKey, string(ch))

	res, err := o.analyze(ctx, logger, inputKey, ch)
	if err != nil {
		kind := models.Kind(err)
		o.metrics.RecordAnalysis(string(ch), kind, time.Since(start).Seconds())
		logger.Error().Err(err).Str("kind", kind).Msg(MessageFailed)
		return models.AnalysisResponse{Failure: &models.ErrorResult{
			Message: MessageFailed,
			Error:   err.Error(),
			Kind:    kind,
		}}
	}

	outcome := "clean"
	if res.ContainsPII {
		outcome = "pii"
	}
	o.metrics.RecordAnalysis(string(ch), outcome, time.Since(start).Seconds())
	return models.AnalysisResponse{Result: res}
}

func (o *Orchestrator) analyze(ctx context.Context, logger zerolog.Logger, inputKey string, ch models.Channel) (*models.AnalysisResult, error) {
	if inputKey == "" {
		return nil, fmt.Errorf("%w: object key is empty", models.ErrValidation)
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", models.ErrValidation, ch)
	}

	transcriptKey := keys.TranscriptStorageKey(inputKey, ch)
	audioKey := keys.AudioKeyFor(inputKey, ch)

	data, err := o.store.Get(ctx, o.cfg.TranscriptsBucket, transcriptKey)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript %s: %w", transcriptKey, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch transcript %s: empty object: %w", transcriptKey, models.ErrNotFound)
	}

	ex, err := pii.ParseAndExtract(data, o.cfg.RedactionTag)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", transcriptKey, err)
	}

	res := &models.AnalysisResult{
		Channel:       ch,
		AudioURI:      keys.S3URI(o.cfg.AudioBucket, audioKey),
		TranscriptURI: keys.S3URI(o.cfg.TranscriptsBucket, transcriptKey),
		AudioKey:      audioKey,
		Bucket:        o.cfg.TranscriptsBucket,
	}

	containsPII := pii.ContainsPII(ex.Text, o.cfg.RedactionTag)
	if containsPII != (len(ex.Occurrences) > 0) {
		o.metrics.RecordSignalDisagreement()
		logger.Warn().
			Bool("textContainsTag", containsPII).
			Int("occurrences", len(ex.Occurrences)).
			Msg("PII signals disagree, text gate wins")
	}

	if !containsPII {
		res.Message = MessageNoPII
		logger.Info().Msg(MessageNoPII)
		return res, nil
	}

	redactedKey := keys.RedactedAudioKeyFor(audioKey, o.cfg.Policy.OverwriteOriginal)
	act := o.cfg.Policy.Allows(ch)

	res.Message = MessageAnalyzed
	res.ContainsPII = true
	res.TranscriptText = ex.Text
	res.PiiOccurrences = ex.Occurrences
	res.MuteIntervals = ex.MuteIntervals
	res.RedactOriginalAudio = o.cfg.Policy.OverwriteOriginal
	redact := act && o.cfg.Policy.RedactAudio && o.invoker != nil
	// Nothing to mute means no worker invocation.
	res.RedactionTriggered = redact && len(ex.MuteIntervals) > 0
	if res.RedactionTriggered {
		res.RedactedAudioURI = keys.S3URI(o.cfg.AudioBucket, redactedKey)
	}

	o.metrics.RecordPIIOccurrences(len(ex.Occurrences))
	logger.Info().
		Int("occurrences", len(ex.Occurrences)).
		Bool("sideEffects", act).
		Msg("PII detected in call recording")

	if act {
		res.SideEffects = o.runSideEffects(ctx, logger, res, redact, models.RedactionRequest{
			S3ObjectKey:    audioKey,
			Bucket:         o.cfg.AudioBucket,
			OutputKey:      redactedKey,
			MuteTimeStamps: ex.MuteIntervals,
		})
	}
	return res, nil
}

// runSideEffects dispatches redaction and notifications concurrently and
// waits until each has been handed off. Every action gets its own outcome,
// and a panicking action fails only its own outcome.
func (o *Orchestrator) runSideEffects(ctx context.Context, logger zerolog.Logger, res *models.AnalysisResult, redact bool, req models.RedactionRequest) []models.SideEffectOutcome {
	type action struct {
		name string
		run  func(context.Context) error
	}

	var actions []action
	var skipped []models.SideEffectOutcome
	if redact {
		name := "redaction:" + o.invoker.Name()
		if err := redaction.Validate(req); err != nil {
			skipped = append(skipped, models.SideEffectOutcome{Name: name, Err: err})
		} else {
			actions = append(actions, action{name, func(ctx context.Context) error {
				return o.invoker.InvokeRedaction(ctx, req)
			}})
		}
	}
	if o.cfg.Policy.Notify {
		for _, n := range o.notifiers {
			if e, ok := n.(interface{ Enabled() bool }); ok && !e.Enabled() {
				skipped = append(skipped, models.SideEffectOutcome{Name: "notify:" + n.Name()})
				continue
			}
			actions = append(actions, action{"notify:" + n.Name(), func(ctx context.Context) error {
				return n.Notify(ctx, res)
			}})
		}
	}

	outcomes := make([]models.SideEffectOutcome, len(actions))
	var g errgroup.Group
	for i, a := range actions {
		g.Go(func() error {
			err := runRecovered(ctx, a.run)
			if err != nil {
				err = fmt.Errorf("%w: %s: %w", models.ErrSideEffect, a.name, err)
			}
			outcomes[i] = models.SideEffectOutcome{Name: a.name, Attempted: true, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	outcomes = append(outcomes, skipped...)

	for _, out := range outcomes {
		o.metrics.RecordSideEffect(out.Name, out.Attempted, out.Err)
		if !out.Attempted {
			if out.Err != nil {
				logger.Warn().Err(out.Err).Str("effect", out.Name).Msg("Side effect skipped")
				continue
			}
			logger.Debug().Str("effect", out.Name).Msg("Side effect not configured")
			continue
		}
		if out.Err != nil {
			logger.Error().Err(out.Err).Str("effect", out.Name).Msg("Side effect failed")
			continue
		}
		logger.Debug().Str("effect", out.Name).Msg("Side effect dispatched")
	}
	return outcomes
}

// runRecovered calls run and turns a panic into an error.
func runRecovered(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return run(ctx)
}
