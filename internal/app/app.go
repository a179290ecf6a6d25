package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"speech-pii-redaction-service/internal/config"
	"speech-pii-redaction-service/internal/events"
	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/notify"
	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/observability/metrics"
	"speech-pii-redaction-service/internal/service/analysis"
	"speech-pii-redaction-service/internal/service/ingest"
	"speech-pii-redaction-service/internal/service/redaction"
	"speech-pii-redaction-service/internal/service/stage"
	"speech-pii-redaction-service/internal/service/stt"
	sttaws "speech-pii-redaction-service/internal/service/stt/aws"
	sttmock "speech-pii-redaction-service/internal/service/stt/mock"
	"speech-pii-redaction-service/internal/service/transcription"
	"speech-pii-redaction-service/internal/storage"
	"speech-pii-redaction-service/internal/storage/memory"
	s3store "speech-pii-redaction-service/internal/storage/s3"
)

// mockPrincipal attributes synthesized transcripts in offline mode.
const mockPrincipal = "mock-stt"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Metrics     *metrics.Metrics

	Router       *ingest.Router
	Dispatcher   *transcription.Dispatcher
	Orchestrator *analysis.Orchestrator
	Publisher    *events.Publisher
	Consumer     *events.Consumer

	// Memory is set when the in-process store is used.
	Memory *memory.Store
	// Mock is set when the mock transcription engine is used.
	Mock *sttmock.Adapter

	awsCfg  *aws.Config
	started atomic.Bool
	pending sync.WaitGroup
	cancel  context.CancelFunc
}

// New constructs the pipeline from cfg. AWS credentials are only resolved
// when an AWS-backed component is configured.
func New(ctx context.Context, cfg *config.Configuration, m *metrics.Metrics) (*Application, error) {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	a := &Application{
		Cfg:     cfg,
		Metrics: m,
		Logger: logging.WithComponent("application").With().
			Str("method", "New").
			Logger(),
	}

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	adapter, err := a.buildAdapter(ctx)
	if err != nil {
		return nil, err
	}

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		RedactionTopic:  cfg.Kafka.RedactionTopic,
		DetectionsTopic: cfg.Kafka.DetectionsTopic,
		Principal:       cfg.Kafka.Principal,
	}, m)

	invoker, err := a.buildInvoker(ctx)
	if err != nil {
		return nil, err
	}

	a.Dispatcher = transcription.New(adapter, transcription.Config{
		AudioBucket:         cfg.Storage.AudioBucket,
		TranscriptsBucket:   cfg.Storage.TranscriptsBucket,
		DefaultLanguageCode: cfg.Transcription.DefaultLanguageCode,
		MediaFormat:         cfg.Transcription.MediaFormat,
		PIIEntityTypes:      cfg.Transcription.PIIEntityTypes,
		Concurrency:         cfg.Transcription.Concurrency,
	}, m)

	a.Orchestrator = analysis.New(store, invoker, a.buildNotifiers(), analysis.Config{
		AudioBucket:       cfg.Storage.AudioBucket,
		TranscriptsBucket: cfg.Storage.TranscriptsBucket,
		RedactionTag:      cfg.Analysis.RedactionTag,
		Policy:            policyFrom(cfg),
	}, m)

	a.Router = ingest.New(a.Dispatcher, a.Orchestrator, stage.Rules{
		AudioBucket:       cfg.Storage.AudioBucket,
		TranscriptsBucket: cfg.Storage.TranscriptsBucket,
		FunctionIdentity:  cfg.Service.FunctionIdentity,
	}, m)

	if cfg.Kafka.Enabled {
		a.Consumer = events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.StorageEventsTopic,
			GroupID: cfg.Kafka.ConsumerGroup,
		}, a.Router, m)
	}

	a.Logger.Info().
		Str("storage", cfg.Storage.Provider).
		Str("stt", adapter.Name()).
		Bool("redaction", cfg.Redaction.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Speech PII redaction service application created")
	return a, nil
}

func (a *Application) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.Cfg.Storage.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *Application) buildStore(ctx context.Context) (storage.ObjectStore, error) {
	switch a.Cfg.Storage.Provider {
	case "memory":
		a.Memory = memory.New()
		return a.Memory, nil
	case "s3":
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return s3store.New(s3store.NewClient(awsCfg, s3store.Options{
			Endpoint:     a.Cfg.Storage.Endpoint,
			UsePathStyle: a.Cfg.Storage.UsePathStyle,
		})), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", a.Cfg.Storage.Provider)
	}
}

func (a *Application) buildAdapter(ctx context.Context) (stt.Adapter, error) {
	switch a.Cfg.Transcription.Provider {
	case "mock":
		a.Mock = sttmock.New()
		if a.Memory != nil {
			a.Mock.WithSynthesis(a.Memory, a.Cfg.Analysis.RedactionTag, mockPrincipal)
		}
		return a.Mock, nil
	case "aws":
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return sttaws.New(sttaws.NewClient(awsCfg)), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", a.Cfg.Transcription.Provider)
	}
}

func (a *Application) buildInvoker(ctx context.Context) (redaction.Invoker, error) {
	if !a.Cfg.Redaction.Enabled {
		return nil, nil
	}
	switch a.Cfg.Redaction.Invoker {
	case "kafka":
		return a.Publisher, nil
	case "lambda":
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return redaction.NewLambdaInvoker(redaction.NewLambdaClient(awsCfg), a.Cfg.Redaction.FunctionName), nil
	default:
		return nil, fmt.Errorf("unknown redaction invoker %q", a.Cfg.Redaction.Invoker)
	}
}

func (a *Application) buildNotifiers() []notify.Notifier {
	opts := notify.Options{
		Timeout:      a.Cfg.Notifications.Timeout,
		MaxRetryTime: a.Cfg.Notifications.MaxRetryTime,
		Metrics:      a.Metrics,
	}
	notifiers := []notify.Notifier{
		notify.NewWebhook(a.Cfg.Notifications.WebhookURL, opts),
		notify.NewSlack(a.Cfg.Notifications.SlackWebhookURL, opts),
	}
	if a.Cfg.Kafka.Enabled {
		notifiers = append(notifiers, a.Publisher)
	}
	return notifiers
}

func policyFrom(cfg *config.Configuration) analysis.Policy {
	channels := make([]models.Channel, 0, len(cfg.Analysis.ActionChannels))
	for _, c := range cfg.Analysis.ActionChannels {
		channels = append(channels, models.Channel(c))
	}
	return analysis.Policy{
		RedactAudio:       cfg.Redaction.Enabled,
		OverwriteOriginal: cfg.Redaction.OverwriteOriginal,
		Notify:            cfg.Analysis.NotifyOnDetect,
		Channels:          channels,
	}
}

// Start wires the storage event sources and marks the service ready.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	ctx, a.cancel = context.WithCancel(ctx)

	if a.Memory != nil {
		// Writes to the in-process store feed back into the router, the way
		// bucket notifications do in a deployment.
		a.Memory.OnWrite(func(ev models.StorageEvent) {
			a.pending.Add(1)
			go func() {
				defer a.pending.Done()
				a.Router.HandleStorageEvent(ctx, ev)
			}()
		})
	}

	if a.Consumer != nil {
		a.pending.Add(1)
		go func() {
			defer a.pending.Done()
			if err := a.Consumer.Run(ctx); err != nil {
				startLogger.Error().Err(err).Msg("Storage event consumer stopped")
			}
		}()
	}

	a.StartupTime = time.Now().UTC()
	a.started.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Speech PII redaction service starting")
	return nil
}

// Ready reports whether Start has completed.
func (a *Application) Ready(context.Context) error {
	if !a.started.Load() {
		return errors.New("application not started")
	}
	return nil
}

// Wait blocks until in-flight background work has finished.
func (a *Application) Wait() {
	a.pending.Wait()
}

// Shutdown stops background work and closes Kafka clients.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Speech PII redaction service shutting down")
	a.started.Store(false)
	if a.cancel != nil {
		a.cancel()
	}
	if a.Consumer != nil {
		if err := a.Consumer.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close storage event consumer")
		}
	}
	a.pending.Wait()
	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Failed to close Kafka publisher")
	}
}
