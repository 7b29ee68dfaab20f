package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Scraped(3)
	r.New(1)
	r.Notified(1)
	r.ImageFetched()
	r.WebhookAttempt(OutcomeSuccess)
	r.RunFinished(RunSucceeded, time.Second, time.Now())
	require.NoError(t, r.Flush(filepath.Join(t.TempDir(), "x.prom")))
	require.Nil(t, r.Registry())
}

func TestFlushWritesTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.Scraped(23)
	r.New(5)
	r.WebhookAttempt(OutcomeRateLimited)
	r.WebhookAttempt(OutcomeSuccess)
	r.RunFinished(RunSucceeded, 2*time.Second, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "cola_monitor.prom")
	require.NoError(t, r.Flush(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	require.Contains(t, out, "cola_monitor_labels_scraped_total 23")
	require.Contains(t, out, "cola_monitor_labels_new_total 5")
	require.Contains(t, out, `cola_monitor_webhook_attempts_total{outcome="rate_limited"} 1`)
	require.Contains(t, out, `cola_monitor_runs_total{outcome="succeeded"} 1`)
	require.Contains(t, out, "cola_monitor_last_success_timestamp_seconds 1.7e+09")
}

func TestFlushDisabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewRecorder().Flush(""))
}
