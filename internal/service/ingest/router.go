// Package ingest routes storage notifications and API requests into the
// transcription and analysis stages.
package ingest

import (
	"context"
	"net/url"
	"strings"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/observability/metrics"
	"speech-pii-redaction-service/internal/schema"
	"speech-pii-redaction-service/internal/service/stage"
)

// Outcome messages.
const (
	MsgNotS3       = "Event source is not S3"
	MsgNotCreate   = "Event is not an object creation"
	MsgSelfWrite   = "Event source is the current lambda function"
	MsgRedactedKey = "Object is a redacted copy"
	MsgOtherBucket = "Bucket is not part of the pipeline"
)

// sources that emit S3-format notifications.
var s3Sources = map[string]bool{
	"aws:s3":   true,
	"minio:s3": true,
}

// Dispatcher submits transcription jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, objectKeys []string, languageCode string) models.DispatchResult
}

// Analyzer scans a transcript for PII.
type Analyzer interface {
	Analyze(ctx context.Context, inputKey string, ch models.Channel) models.AnalysisResponse
}

// Router is the single entry point for storage events and API calls.
type Router struct {
	dispatcher Dispatcher
	analyzer   Analyzer
	validator  *schema.Validator
	rules      stage.Rules
	metrics    *metrics.Metrics
}

// New creates a router.
func New(d Dispatcher, a Analyzer, rules stage.Rules, m *metrics.Metrics) *Router {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Router{
		dispatcher: d,
		analyzer:   a,
		validator:  schema.New(),
		rules:      rules,
		metrics:    m,
	}
}

// HandleStorageEvent routes every record of ev and reports one outcome per
// record, in order.
func (r *Router) HandleStorageEvent(ctx context.Context, ev models.StorageEvent) []models.RecordOutcome {
	outcomes := make([]models.RecordOutcome, 0, len(ev.Records))
	for _, rec := range ev.Records {
		out := r.handleRecord(ctx, rec)
		r.metrics.RecordStorageEvent(out.Event)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (r *Router) handleRecord(ctx context.Context, rec models.StorageRecord) models.RecordOutcome {
	key := decodeKey(rec.S3.Object.Key)
	rec.S3.Object.Key = key

	logger := logging.WithComponent("ingest").With().
		Str("bucket", rec.S3.Bucket.Name).
		Str("objectKey", key).
		Str("eventName", rec.EventName).
		Logger()

	out := models.RecordOutcome{
		Bucket:    rec.S3.Bucket.Name,
		ObjectKey: key,
		Stage:     stage.StageUnknown.String(),
	}

	if !s3Sources[rec.EventSource] {
		logger.Warn().Str("eventSource", rec.EventSource).Msg(MsgNotS3)
		out.Event, out.Message = models.EventRejected, MsgNotS3
		return out
	}
	// MinIO prefixes event names with "s3:".
	if !strings.HasPrefix(strings.TrimPrefix(rec.EventName, "s3:"), "ObjectCreated:") {
		logger.Debug().Msg(MsgNotCreate)
		out.Event, out.Message = models.EventIgnored, MsgNotCreate
		return out
	}

	st := stage.Classify(rec, r.rules)
	out.Stage = st.String()

	switch st {
	case stage.StageRedacted:
		msg := MsgSelfWrite
		if !r.rules.IsSelfWrite(rec.UserIdentity.PrincipalID) {
			msg = MsgRedactedKey
		}
		logger.Info().Str("principal", rec.UserIdentity.PrincipalID).Msg(msg)
		out.Event, out.Message = models.EventSkipped, msg

	case stage.StageIngested:
		res := r.dispatcher.Dispatch(ctx, []string{key}, "")
		logger.Info().
			Int("started", len(res.StartedJobs)).
			Int("failed", len(res.JobErrors)).
			Msg("Transcription dispatched")
		out.Event, out.Dispatch = models.EventTranscriptionDispatch, &res

	case stage.StageTranscribed:
		resp := r.analyzer.Analyze(ctx, key, models.ChannelIngestion)
		out.Event, out.Analysis = models.EventAnalysisCompleted, &resp
		out.Stage = advance(st, resp).String()

	default:
		logger.Info().Msg(MsgOtherBucket)
		out.Event, out.Message = models.EventIgnored, MsgOtherBucket
	}
	return out
}

// advance moves a transcript through ANALYZED and, when side effects were
// attempted, NOTIFIED.
func advance(from stage.Stage, resp models.AnalysisResponse) stage.Stage {
	if !resp.OK() {
		return from
	}
	st, err := stage.Advance(from, stage.StageAnalyzed)
	if err != nil {
		return from
	}
	for _, se := range resp.Result.SideEffects {
		if se.Attempted {
			if next, err := stage.Advance(st, stage.StageNotified); err == nil {
				return next
			}
		}
	}
	return st
}

// SubmitBatch validates a POST /transcribe body and dispatches its keys.
// Nothing is submitted when validation fails.
func (r *Router) SubmitBatch(ctx context.Context, body []byte) (models.DispatchResult, error) {
	req, err := r.validator.TranscribeRequest(body)
	if err != nil {
		logger := logging.WithComponent("ingest")
		logger.Warn().Err(err).Msg("Rejected transcribe request")
		return models.DispatchResult{}, err
	}
	return r.dispatcher.Dispatch(ctx, req.S3ObjectKeys, req.LanguageCode), nil
}

// RequestAnalysis analyzes the transcript of an audio key on the on-demand
// channel.
func (r *Router) RequestAnalysis(ctx context.Context, audioKey string) models.AnalysisResponse {
	return r.analyzer.Analyze(ctx, audioKey, models.ChannelOnDemand)
}

// decodeKey undoes the form encoding S3 applies to notification keys.
func decodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}
