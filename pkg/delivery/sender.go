package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Outcome statuses.
const (
	StatusDelivered     = "delivered"
	StatusFailed        = "failed"
	StatusDisabled      = "disabled"
	StatusNotConfigured = "not_configured"
)

// ErrDeliveryFailed wraps the last attempt's failure once retries are exhausted.
var ErrDeliveryFailed = errors.New("delivery failed")

// Outcome is the result of delivering one report. A failed outcome never invalidates
// the match it was built from.
type Outcome struct {
	Attempted  bool   `json:"attempted"`
	Delivered  bool   `json:"delivered"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message,omitempty"`
	Err        error  `json:"-"`
}

// SenderConfig configures the webhook sender.
type SenderConfig struct {
	Enabled     bool
	WebhookURL  string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Budget is the longest a single Send can take: every attempt running to its timeout
// plus the delays between them.
func (c SenderConfig) Budget() time.Duration {
	c = c.normalized()
	return time.Duration(c.MaxAttempts)*c.Timeout + time.Duration(c.MaxAttempts-1)*c.RetryDelay
}

func (c SenderConfig) normalized() SenderConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = httpclient.DefaultTimeout
	}
	return c
}

// WebhookSender POSTs flattened reports to the automation platform webhook.
type WebhookSender struct {
	config SenderConfig
	client *httpclient.Client
	logger ectologger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewWebhookSender creates a sender. MaxAttempts below one is treated as one.
func NewWebhookSender(config SenderConfig, client *httpclient.Client, logger ectologger.Logger) *WebhookSender {
	return &WebhookSender{
		config: config.normalized(),
		client: client,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Send delivers a report, retrying with a fixed delay. Only 200, 201 and 202 count as
// delivered. The whole retry loop is bounded by the config's Budget.
func (s *WebhookSender) Send(ctx context.Context, report *models.Report) Outcome {
	ctx, span := tracing.StartSpan(ctx, "delivery.WebhookSender.Send")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.config.Budget())
	defer cancel()

	if !s.config.Enabled {
		return Outcome{Status: StatusDisabled, Message: "delivery is disabled"}
	}
	if s.config.WebhookURL == "" {
		return Outcome{Status: StatusNotConfigured, Message: "webhook URL not configured"}
	}

	payload := Payload(report)
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"report_id":    report.ReportID,
		"identity_key": report.IdentityKey,
	})

	outcome := Outcome{Attempted: true}
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		statusCode, err := s.attempt(ctx, payload)
		outcome.StatusCode = statusCode
		if err == nil {
			outcome.Delivered = true
			outcome.Status = StatusDelivered
			outcome.Message = fmt.Sprintf("webhook accepted report (HTTP %d)", statusCode)
			metrics.RecordDelivery(StatusDelivered, attempt)
			log.WithField("attempts", attempt).Info("Report delivered")
			return outcome
		}

		lastErr = err
		log.WithError(err).WithFields(map[string]any{
			"attempt":      attempt,
			"max_attempts": s.config.MaxAttempts,
		}).Warn("Delivery attempt failed")

		if attempt < s.config.MaxAttempts {
			if err := s.sleep(ctx, s.config.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	outcome.Status = StatusFailed
	outcome.Err = fmt.Errorf("%w after %d attempt(s): %w", ErrDeliveryFailed, outcome.Attempts, lastErr)
	outcome.Message = outcome.Err.Error()
	metrics.RecordDelivery(StatusFailed, outcome.Attempts)
	log.WithError(outcome.Err).Error("Delivery retries exhausted")
	return outcome
}

func (s *WebhookSender) attempt(ctx context.Context, payload map[string]any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	resp, err := s.client.PostJSON(ctx, s.config.WebhookURL, payload, nil)
	if err != nil {
		return 0, err
	}
	if !httpclient.IsAcceptedStatus(resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, resp.Snippet(200))
	}
	return resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
