// Package metrics counts what each monitor run did. Counters live in a private
// registry that can be dumped in node-exporter textfile format after a run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cola_monitor"

// Webhook attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Run outcomes.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry        *prometheus.Registry
	labelsScraped   prometheus.Counter
	labelsNew       prometheus.Counter
	labelsNotified  prometheus.Counter
	imagesFetched   prometheus.Counter
	webhookAttempts *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastSuccess     prometheus.Gauge
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		labelsScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_scraped_total",
			Help:      "Labels parsed from registry search results.",
		}),
		labelsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_new_total",
			Help:      "Scraped labels that had not been notified before.",
		}),
		labelsNotified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_notified_total",
			Help:      "Labels marked seen after confirmed delivery.",
		}),
		imagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_fetched_total",
			Help:      "Label images attached to notifications.",
		}),
		webhookAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_attempts_total",
			Help:      "Webhook send attempts by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	r.registry.MustRegister(
		r.labelsScraped,
		r.labelsNew,
		r.labelsNotified,
		r.imagesFetched,
		r.webhookAttempts,
		r.runs,
		r.runDuration,
		r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Scraped(n int) {
	if r == nil {
		return
	}
	r.labelsScraped.Add(float64(n))
}

func (r *Recorder) New(n int) {
	if r == nil {
		return
	}
	r.labelsNew.Add(float64(n))
}

func (r *Recorder) Notified(n int) {
	if r == nil {
		return
	}
	r.labelsNotified.Add(float64(n))
}

func (r *Recorder) ImageFetched() {
	if r == nil {
		return
	}
	r.imagesFetched.Inc()
}

// WebhookAttempt counts one send attempt with an Outcome* value.
func (r *Recorder) WebhookAttempt(outcome string) {
	if r == nil {
		return
	}
	r.webhookAttempts.WithLabelValues(outcome).Inc()
}

// RunFinished records the outcome and duration of one pipeline run.
func (r *Recorder) RunFinished(outcome string, took time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(took.Seconds())
	if outcome == RunSucceeded {
		r.lastSuccess.Set(float64(at.Unix()))
	}
}

// Flush writes the registry to path in textfile collector format. An empty
// path disables the export.
func (r *Recorder) Flush(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
