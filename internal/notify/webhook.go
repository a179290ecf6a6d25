package notify

import (
	"context"

	"speech-pii-redaction-service/internal/models"
)

// Webhook posts the full analysis result as JSON.
type Webhook struct {
	url  string
	opts Options
}

// NewWebhook creates a webhook notifier. An empty url disables it.
func NewWebhook(url string, opts Options) *Webhook {
	return &Webhook{url: url, opts: opts.withDefaults()}
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

// Enabled reports whether a target URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// Notify implements Notifier. It does nothing without a URL.
func (w *Webhook) Notify(ctx context.Context, res *models.AnalysisResult) error {
	if !w.Enabled() {
		return nil
	}
	return postJSON(ctx, w.opts, w.Name(), w.url, res)
}
