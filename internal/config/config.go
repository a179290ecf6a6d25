// Package config loads service configuration from the environment, with an
// optional YAML file underneath.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the complete service configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Redaction     RedactionConfig     `yaml:"redaction"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal string `yaml:"principal"`
	HTTPPort  string `yaml:"http_port"`
	GRPCPort  string `yaml:"grpc_port"`
	// FunctionIdentity is matched against the principal of storage writes to
	// recognize the pipeline's own output.
	FunctionIdentity string        `yaml:"function_identity"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig locates the object store and the two pipeline buckets.
type StorageConfig struct {
	Provider          string `yaml:"provider"` // s3, memory
	AudioBucket       string `yaml:"audio_bucket"`
	TranscriptsBucket string `yaml:"transcripts_bucket"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	UsePathStyle      bool   `yaml:"use_path_style"`
}

// TranscriptionConfig configures the transcription engine and dispatch.
type TranscriptionConfig struct {
	Provider            string   `yaml:"provider"` // aws, mock
	DefaultLanguageCode string   `yaml:"default_language_code"`
	MediaFormat         string   `yaml:"media_format"`
	PIIEntityTypes      []string `yaml:"pii_entity_types"`
	Concurrency         int      `yaml:"concurrency"`
}

// AnalysisConfig controls PII detection and when side effects fire.
type AnalysisConfig struct {
	RedactionTag   string   `yaml:"redaction_tag"`
	ActionChannels []string `yaml:"action_channels"`
	NotifyOnDetect bool     `yaml:"notify_on_detect"`
}

// RedactionConfig controls the audio redaction job.
type RedactionConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Invoker           string `yaml:"invoker"` // kafka, lambda
	FunctionName      string `yaml:"function_name"`
	OverwriteOriginal bool   `yaml:"overwrite_original"`
}

// NotificationsConfig holds webhook targets. Empty URLs disable a notifier.
type NotificationsConfig struct {
	WebhookURL      string        `yaml:"webhook_url"`
	SlackWebhookURL string        `yaml:"slack_webhook_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetryTime    time.Duration `yaml:"max_retry_time"`
}

// KafkaConfig holds Kafka publisher and consumer settings.
type KafkaConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Brokers            []string `yaml:"brokers"`
	Principal          string   `yaml:"principal"`
	StorageEventsTopic string   `yaml:"storage_events_topic"`
	ConsumerGroup      string   `yaml:"consumer_group"`
	RedactionTopic     string   `yaml:"redaction_topic"`
	DetectionsTopic    string   `yaml:"detections_topic"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort string `yaml:"metrics_port"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:        "svc-speech-pii-redaction",
			HTTPPort:         "8080",
			GRPCPort:         "50051",
			FunctionIdentity: "speech-pii-redaction",
			ShutdownTimeout:  15 * time.Second,
		},
		Storage: StorageConfig{
			Provider:          "s3",
			AudioBucket:       "call-recordings",
			TranscriptsBucket: "call-transcripts",
			Region:            "us-east-1",
		},
		Transcription: TranscriptionConfig{
			Provider:            "aws",
			DefaultLanguageCode: "en-US",
			MediaFormat:         "wav",
			PIIEntityTypes:      []string{"ALL"},
			Concurrency:         8,
		},
		Analysis: AnalysisConfig{
			RedactionTag:   "[PII]",
			ActionChannels: []string{"ingestion", "on-demand"},
			NotifyOnDetect: true,
		},
		Redaction: RedactionConfig{
			Enabled: false,
			Invoker: "kafka",
		},
		Notifications: NotificationsConfig{
			Timeout:      10 * time.Second,
			MaxRetryTime: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:            false,
			Brokers:            []string{"localhost:9092"},
			StorageEventsTopic: "storage-events",
			ConsumerGroup:      "speech-pii-redaction",
			RedactionTopic:     "pii-redaction-requests",
			DetectionsTopic:    "pii-detections",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: "9090",
		},
	}
}

// Load builds the configuration from defaults and environment variables.
func Load() *Configuration {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// LoadWithFile layers defaults, the YAML file at path, then the environment.
// An empty path is the same as Load.
func LoadWithFile(path string) (*Configuration, error) {
	if path == "" {
		return Load(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults, then applies the
// environment. Unknown YAML fields are rejected.
func LoadFromReader(r io.Reader) (*Configuration, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Configuration) {
	s := &cfg.Service
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPPort = envOrDefault("HTTP_PORT", s.HTTPPort)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.FunctionIdentity = envOrDefault("CURRENT_FUNCTION_NAME", s.FunctionIdentity)
	s.ShutdownTimeout = envOrDefaultDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	st := &cfg.Storage
	st.Provider = envOrDefault("STORAGE_PROVIDER", st.Provider)
	st.AudioBucket = envOrDefault("AUDIO_BUCKET", st.AudioBucket)
	st.TranscriptsBucket = envOrDefault("TRANSCRIPTS_BUCKET", st.TranscriptsBucket)
	st.Region = envOrDefault("AWS_REGION", st.Region)
	st.Endpoint = envOrDefault("S3_ENDPOINT", st.Endpoint)
	st.UsePathStyle = envOrDefaultBool("S3_USE_PATH_STYLE", st.UsePathStyle)

	tr := &cfg.Transcription
	tr.Provider = envOrDefault("STT_PROVIDER", tr.Provider)
	tr.DefaultLanguageCode = envOrDefault("DEFAULT_LANGUAGE_CODE", tr.DefaultLanguageCode)
	tr.MediaFormat = envOrDefault("MEDIA_FORMAT", tr.MediaFormat)
	tr.PIIEntityTypes = envOrDefaultList("PII_ENTITIES", tr.PIIEntityTypes)
	tr.Concurrency = envOrDefaultInt("DISPATCH_CONCURRENCY", tr.Concurrency)

	an := &cfg.Analysis
	an.RedactionTag = envOrDefault("REDACTED_PII_TAG", an.RedactionTag)
	an.ActionChannels = envOrDefaultList("ACTION_CHANNELS", an.ActionChannels)
	an.NotifyOnDetect = envOrDefaultBool("NOTIFY_ON_DETECT", an.NotifyOnDetect)

	rd := &cfg.Redaction
	rd.Enabled = envOrDefaultBool("REDACT_AUDIO", rd.Enabled)
	rd.Invoker = envOrDefault("REDACTION_INVOKER", rd.Invoker)
	rd.FunctionName = envOrDefault("REDACTOR_FUNCTION_NAME", rd.FunctionName)
	rd.OverwriteOriginal = envOrDefaultBool("OVERWRITE_ORIGINAL_AUDIO", rd.OverwriteOriginal)

	n := &cfg.Notifications
	n.WebhookURL = envOrDefault("NOTIFICATIONS_WEBHOOK_URL", n.WebhookURL)
	n.SlackWebhookURL = envOrDefault("SLACK_NOTIFICATIONS_WEBHOOK", n.SlackWebhookURL)
	n.Timeout = envOrDefaultDuration("NOTIFICATIONS_TIMEOUT", n.Timeout)
	n.MaxRetryTime = envOrDefaultDuration("NOTIFICATIONS_MAX_RETRY_TIME", n.MaxRetryTime)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultList("KAFKA_BROKERS", k.Brokers)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = s.Principal
	}
	k.StorageEventsTopic = envOrDefault("KAFKA_STORAGE_EVENTS_TOPIC", k.StorageEventsTopic)
	k.ConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", k.ConsumerGroup)
	k.RedactionTopic = envOrDefault("KAFKA_REDACTION_TOPIC", k.RedactionTopic)
	k.DetectionsTopic = envOrDefault("KAFKA_DETECTIONS_TOPIC", k.DetectionsTopic)

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
	o.MetricsPort = envOrDefault("METRICS_PORT", o.MetricsPort)
}

var (
	validStorageProviders = []string{"s3", "memory"}
	validSTTProviders     = []string{"aws", "mock"}
	validInvokers         = []string{"kafka", "lambda"}
	validChannels         = []string{"ingestion", "on-demand"}
)

// Validate checks that cfg is coherent. It returns a joined error listing
// every problem found.
func Validate(cfg *Configuration) error {
	var errs []error

	if cfg.Storage.AudioBucket == "" {
		errs = append(errs, errors.New("storage.audio_bucket (AUDIO_BUCKET) is required"))
	}
	if cfg.Storage.TranscriptsBucket == "" {
		errs = append(errs, errors.New("storage.transcripts_bucket (TRANSCRIPTS_BUCKET) is required"))
	}
	if !slices.Contains(validStorageProviders, cfg.Storage.Provider) {
		errs = append(errs, fmt.Errorf("storage.provider %q is invalid; valid values: %s", cfg.Storage.Provider, strings.Join(validStorageProviders, ", ")))
	}
	if !slices.Contains(validSTTProviders, cfg.Transcription.Provider) {
		errs = append(errs, fmt.Errorf("transcription.provider %q is invalid; valid values: %s", cfg.Transcription.Provider, strings.Join(validSTTProviders, ", ")))
	}
	if cfg.Transcription.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("transcription.concurrency must be at least 1, got %d", cfg.Transcription.Concurrency))
	}
	if len(cfg.Transcription.PIIEntityTypes) == 0 {
		errs = append(errs, errors.New("transcription.pii_entity_types (PII_ENTITIES) must name at least one entity type"))
	}
	if cfg.Analysis.RedactionTag == "" {
		errs = append(errs, errors.New("analysis.redaction_tag (REDACTED_PII_TAG) is required"))
	}
	for _, ch := range cfg.Analysis.ActionChannels {
		if !slices.Contains(validChannels, ch) {
			errs = append(errs, fmt.Errorf("analysis.action_channels: unknown channel %q", ch))
		}
	}
	if !slices.Contains(validInvokers, cfg.Redaction.Invoker) {
		errs = append(errs, fmt.Errorf("redaction.invoker %q is invalid; valid values: %s", cfg.Redaction.Invoker, strings.Join(validInvokers, ", ")))
	}
	if cfg.Redaction.Enabled && cfg.Redaction.Invoker == "lambda" && cfg.Redaction.FunctionName == "" {
		errs = append(errs, errors.New("redaction.function_name (REDACTOR_FUNCTION_NAME) is required for the lambda invoker"))
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers (KAFKA_BROKERS) is required when kafka is enabled"))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// envOrDefaultList splits a comma-separated variable, dropping blanks.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
