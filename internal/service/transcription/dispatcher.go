// Package transcription submits batch transcription jobs for audio objects.
package transcription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/observability/metrics"
	"speech-pii-redaction-service/internal/service/keys"
	"speech-pii-redaction-service/internal/service/stt"
)

// Config holds dispatcher settings.
type Config struct {
	AudioBucket         string
	TranscriptsBucket   string
	DefaultLanguageCode string
	MediaFormat         string
	PIIEntityTypes      []string
	// Concurrency bounds in-flight submissions per batch.
	Concurrency int
}

// Dispatcher turns audio keys into transcription jobs.
type Dispatcher struct {
	adapter stt.Adapter
	cfg     Config
	metrics *metrics.Metrics
	newID   func() string
}

// New creates a dispatcher over adapter.
func New(adapter stt.Adapter, cfg Config, m *metrics.Metrics) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Dispatcher{
		adapter: adapter,
		cfg:     cfg,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// Dispatch submits one job per key. A failing key never affects the others;
// both result lists keep input order. An empty languageCode selects the
// configured default.
func (d *Dispatcher) Dispatch(ctx context.Context, objectKeys []string, languageCode string) models.DispatchResult {
	if languageCode == "" {
		languageCode = d.cfg.DefaultLanguageCode
	}

	results := make([]models.JobResult, len(objectKeys))
	failed := make([]bool, len(objectKeys))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, key := range objectKeys {
		g.Go(func() error {
			res, err := d.submit(ctx, key, languageCode)
			results[i] = res
			failed[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	out := models.DispatchResult{
		StartedJobs: []models.JobResult{},
		JobErrors:   []models.JobResult{},
	}
	for i, res := range results {
		if failed[i] {
			out.JobErrors = append(out.JobErrors, res)
		} else {
			out.StartedJobs = append(out.StartedJobs, res)
		}
	}
	return out
}

func (d *Dispatcher) submit(ctx context.Context, key, languageCode string) (models.JobResult, error) {
	// The id exists before the engine is called so failures can still be
	// correlated.
	jobID := d.newID()
	uri := keys.S3URI(d.cfg.AudioBucket, key)
	logger := logging.WithJob("dispatcher", jobID, uri)

	spec := stt.JobSpec{
		JobName:      jobID,
		LanguageCode: languageCode,
		MediaFormat:  d.cfg.MediaFormat,
		SourceURI:    uri,
		OutputBucket: d.cfg.TranscriptsBucket,
		OutputKey:    keys.TranscriptKeyFor(key, models.ChannelIngestion),
		Redaction: stt.RedactionPolicy{
			Enabled:     true,
			EntityTypes: d.cfg.PIIEntityTypes,
			Output:      "redacted",
		},
	}

	start := time.Now()
	err := d.adapter.SubmitJob(ctx, spec)
	d.metrics.RecordTranscriptionJob(d.adapter.Name(), err, time.Since(start).Seconds())

	res := models.JobResult{JobID: jobID, S3URI: uri}
	if err != nil {
		err = fmt.Errorf("%w: %v", models.ErrDispatch, err)
		res.Error = err.Error()
		logger.Error().Err(err).Msg("Failed to start transcription job")
		return res, err
	}

	logger.Info().
		Str("provider", d.adapter.Name()).
		Str("outputKey", spec.OutputKey).
		Str("languageCode", languageCode).
		Msg("Transcription job started")
	return res, nil
}
