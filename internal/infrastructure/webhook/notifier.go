// Package webhook delivers label notifications to a Discord-compatible chat
// webhook with batching, pacing and rate-limit aware retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ColaMonitor/internal/config"
	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/metrics"
	"ColaMonitor/internal/ports"
)

// ErrDeliveryFailed is wrapped by every send that exhausted its attempts.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Notifier implements ports.Notifier for chat webhooks.
type Notifier struct {
	http      *resty.Client
	cfg       config.WebhookConfig
	pacing    config.PacingConfig
	detailURL func(ttbID string) string
	sleep     Sleeper
	now       func() time.Time
	recorder  *metrics.Recorder
	logger    *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// Option customises a Notifier.
type Option func(*Notifier)

// WithSleeper replaces the pause implementation, e.g. to record waits in tests.
func WithSleeper(s Sleeper) Option {
	return func(n *Notifier) { n.sleep = s }
}

// WithClock replaces the card timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithRecorder counts every send attempt.
func WithRecorder(r *metrics.Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

// NewNotifier builds a webhook notifier. detailURL renders the link each card
// points to.
func NewNotifier(cfg config.WebhookConfig, pacing config.PacingConfig, detailURL func(string) string, logger *slog.Logger, opts ...Option) *Notifier {
	client := resty.New()
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(cfg.RequestTimeout)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if pacing.MaxAttempts < 1 {
		pacing.MaxAttempts = 1
	}
	if detailURL == nil {
		detailURL = func(string) string { return "" }
	}

	n := &Notifier{
		http:      client,
		cfg:       cfg,
		pacing:    pacing,
		detailURL: detailURL,
		sleep:     sleepContext,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends a header message, one message per image-bearing label and the
// remaining labels in batched multi-card messages. Image message failures are
// logged and skipped; a batch that cannot be delivered fails the whole call.
func (n *Notifier) Notify(ctx context.Context, labels []domain.Label) error {
	if len(labels) == 0 {
		return nil
	}

	header := Payload{Username: n.cfg.Username, Content: HeaderContent(len(labels))}
	if err := n.deliver(ctx, "header", n.jsonRequest(header)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		n.warn("header message not delivered", "error", err)
	}
	if err := n.sleep(ctx, n.pacing.AfterHeader); err != nil {
		return err
	}

	withImage, withoutImage := Partition(labels)

	for _, label := range withImage {
		if err := n.sendWithImage(ctx, label); err != nil {
			if ctx.Err() != nil {
				return err
			}
			n.warn("image notification not delivered", "ttb_id", label.TTBID, "error", err)
		} else {
			n.debug("sent notification with image", "ttb_id", label.TTBID)
		}
		if err := n.sleep(ctx, n.pacing.AfterImage); err != nil {
			return err
		}
	}

	batches := Chunk(withoutImage, n.cfg.BatchSize)
	for i, batch := range batches {
		if err := n.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
		}
		n.debug("sent batch", "labels", len(batch))
		if i < len(batches)-1 {
			if err := n.sleep(ctx, n.pacing.BetweenBatches); err != nil {
				return err
			}
		}
	}

	return nil
}

func (n *Notifier) sendWithImage(ctx context.Context, label domain.Label) error {
	payload := Payload{
		Username: n.cfg.Username,
		Embeds:   []Embed{n.card(label, n.now())},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	build := func() *resty.Request {
		return n.http.R().
			SetMultipartFormData(map[string]string{"payload_json": string(raw)}).
			SetFileReader("files[0]", label.ImageFilename, bytes.NewReader(label.ImageData))
	}
	return n.deliver(ctx, "label "+label.TTBID, build)
}

func (n *Notifier) sendBatch(ctx context.Context, batch domain.Batch) error {
	now := n.now()
	embeds := make([]Embed, 0, len(batch))
	for _, label := range batch {
		embeds = append(embeds, n.card(label, now))
	}
	payload := Payload{Username: n.cfg.Username, Embeds: embeds}
	return n.deliver(ctx, fmt.Sprintf("batch of %d", len(batch)), n.jsonRequest(payload))
}

func (n *Notifier) jsonRequest(payload Payload) func() *resty.Request {
	return func() *resty.Request {
		return n.http.R().
			SetHeader("Content-Type", "application/json").
			SetBody(payload)
	}
}

// deliver posts the request built by build, retrying up to MaxAttempts times.
// A 429 waits for Retry-After (or the default); any other failure waits
// attempt*RetryBase. There is no wait after the final attempt.
func (n *Notifier) deliver(ctx context.Context, what string, build func() *resty.Request) error {
	attempts := n.pacing.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := build().SetContext(ctx).Post(n.cfg.URL)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.recorder.WebhookAttempt(metrics.OutcomeError)
			lastErr = err
			wait = time.Duration(attempt) * n.pacing.RetryBase
		case res.IsSuccess():
			n.recorder.WebhookAttempt(metrics.OutcomeSuccess)
			return nil
		case res.StatusCode() == http.StatusTooManyRequests:
			n.recorder.WebhookAttempt(metrics.OutcomeRateLimited)
			lastErr = errors.New("rate limited")
			wait = retryAfter(res.Header().Get("Retry-After"), n.pacing.DefaultRetryAfter)
		default:
			n.recorder.WebhookAttempt(metrics.OutcomeError)
			lastErr = fmt.Errorf("status %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
			wait = time.Duration(attempt) * n.pacing.RetryBase
		}

		if attempt == attempts {
			break
		}
		n.debug("webhook attempt failed, retrying", "what", what, "attempt", attempt, "wait", wait, "error", lastErr)
		if err := n.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %v", ErrDeliveryFailed, what, attempts, lastErr)
}

// retryAfter converts a Retry-After header in seconds to a duration.
func retryAfter(header string, fallback time.Duration) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

// SendTest posts a single sample message without retries.
func (n *Notifier) SendTest(ctx context.Context) error {
	payload := Payload{
		Username: n.cfg.Username,
		Content:  "**Test Notification** - TTB COLA Monitor is configured correctly!",
		Embeds: []Embed{{
			Title:       "Test Bourbon",
			Description: "This is a test notification to verify your webhook is working.",
			Color:       n.cfg.Color,
			Fields: []Field{
				{Name: "Brand", Value: "Test Distillery", Inline: true},
				{Name: "Type", Value: "STRAIGHT BOURBON WHISKY", Inline: true},
				{Name: "Origin", Value: "KENTUCKY", Inline: true},
			},
			Footer: &Footer{Text: n.cfg.Footer + " - Test"},
		}},
	}

	res, err := n.jsonRequest(payload)().SetContext(ctx).Post(n.cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: test message: %v", ErrDeliveryFailed, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: test message: status %d", ErrDeliveryFailed, res.StatusCode())
	}
	return nil
}

func (n *Notifier) debug(msg string, args ...any) {
	if n.logger == nil {
		return
	}
	n.logger.Debug(msg, args...)
}

func (n *Notifier) warn(msg string, args ...any) {
	if n.logger == nil {
		return
	}
	n.logger.Warn(msg, args...)
}
