// Package notify tells external systems about recordings that contain PII.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/metrics"
)

// Notifier delivers a positive analysis result somewhere.
type Notifier interface {
	Notify(ctx context.Context, res *models.AnalysisResult) error
	Name() string
}

// Options configures HTTP notifiers.
type Options struct {
	Client       *http.Client
	Timeout      time.Duration
	MaxRetryTime time.Duration
	Metrics      *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.DefaultMetrics
	}
	return o
}

// postJSON posts body to url, retrying transport errors and 5xx with
// exponential backoff. 4xx responses are not retried.
func postJSON(ctx context.Context, opts Options, name, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", name, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = opts.MaxRetryTime

	var lastErr error
	op := func() error {
		opts.Metrics.RecordNotificationAttempt(name)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			lastErr = fmt.Errorf("%s: build request: %w", name, err)
			return backoff.Permanent(lastErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := opts.Client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			return lastErr
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s: server error %d: %s", name, resp.StatusCode, respBody)
			return lastErr
		case resp.StatusCode >= 400:
			lastErr = fmt.Errorf("%s: rejected %d: %s", name, resp.StatusCode, respBody)
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	var b backoff.BackOff = bo
	if opts.MaxRetryTime <= 0 {
		b = &backoff.StopBackOff{}
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
