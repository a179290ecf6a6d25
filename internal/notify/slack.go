package notify

import (
	"context"
	"fmt"

	"speech-pii-redaction-service/internal/models"
)

// Slack posts a short message to an incoming-webhook URL.
type Slack struct {
	url  string
	opts Options
}

type slackMessage struct {
	Text string `json:"text"`
}

// NewSlack creates a Slack notifier. An empty url disables it.
func NewSlack(url string, opts Options) *Slack {
	return &Slack{url: url, opts: opts.withDefaults()}
}

// Name implements Notifier.
func (s *Slack) Name() string { return "slack" }

// Enabled reports whether a target URL is configured.
func (s *Slack) Enabled() bool { return s.url != "" }

// Notify implements Notifier. It does nothing without a URL.
func (s *Slack) Notify(ctx context.Context, res *models.AnalysisResult) error {
	if !s.Enabled() {
		return nil
	}
	return postJSON(ctx, s.opts, s.Name(), s.url, slackMessage{Text: SlackText(res.AudioKey, res.Bucket)})
}

// SlackText formats the detection message.
func SlackText(objectKey, bucket string) string {
	return fmt.Sprintf("PII detected in Call Recording:\n\nKey: *%s*.\n\nBucket: *%s*", objectKey, bucket)
}
