package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	configPathEnv, webhookURLEnv, daysBackEnv, proxyTokenEnv, proxyURLEnv,
	stateDriverEnv, statePathEnv, logLevelEnv, logFormatEnv, metricsFileEnv,
	minioEndpointEnv, minioAccessEnv, minioSecretEnv, minioBucketEnv,
}

// clearEnv unsets every variable the loader reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadFrom("")
	require.Equal(t, 1, cfg.DaysBack)
	require.Equal(t, "https://www.ttbonline.gov/colasonline", cfg.Registry.BaseURL)
	require.Equal(t, "100", cfg.Registry.ClassTypeFrom)
	require.Equal(t, "199", cfg.Registry.ClassTypeTo)
	require.False(t, cfg.Registry.VerifyTLS)
	require.Equal(t, "https://production-sfo.browserless.io/unblock", cfg.Proxy.Endpoint)
	require.Equal(t, 0xd4a574, cfg.Webhook.Color)
	require.Equal(t, 10, cfg.Webhook.BatchSize)
	require.Equal(t, DefaultPacing(), cfg.Pacing)
	require.Equal(t, StateConfig{Driver: "file", Path: "data/seen-labels.json"}, cfg.State)
	require.False(t, cfg.Archive.Enabled())
	require.ErrorIs(t, cfg.Validate(), ErrMissingWebhookURL)
}

func TestLoadYAMLMergesDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
daysBack: 3
webhook:
  url: https://chat.test/hook
  batchSize: 5
pacing:
  afterImage: 250ms
scheduler:
  cronExpression: "*/30 * * * *"
  timezone: UTC
`), 0o644))

	cfg := LoadFrom(path)
	require.Equal(t, 3, cfg.DaysBack)
	require.Equal(t, "https://chat.test/hook", cfg.Webhook.URL)
	require.Equal(t, 5, cfg.Webhook.BatchSize)
	require.Equal(t, "TTB COLA Monitor", cfg.Webhook.Username)
	require.Equal(t, 250*time.Millisecond, cfg.Pacing.AfterImage)
	require.Equal(t, 500*time.Millisecond, cfg.Pacing.AfterHeader)
	require.Equal(t, 3, cfg.Pacing.MaxAttempts)
	require.Equal(t, "*/30 * * * *", cfg.Scheduler.CronExpression)
	require.Equal(t, time.UTC, cfg.Scheduler.Location())
	require.NoError(t, cfg.Validate())
}

func TestLoadMalformedYAMLFallsBack(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webhook: [unterminated"), 0o644))

	cfg := LoadFrom(path)
	require.Equal(t, "TTB COLA Monitor", cfg.Webhook.Username)
	require.Equal(t, "", cfg.Webhook.URL)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(webhookURLEnv, "https://chat.test/env")
	t.Setenv(daysBackEnv, "7")
	t.Setenv(proxyTokenEnv, "token")
	t.Setenv(stateDriverEnv, "SQLite")
	t.Setenv(statePathEnv, "/var/lib/cola/seen.db")
	t.Setenv(minioEndpointEnv, "minio:9000")
	t.Setenv(minioBucketEnv, "labels")

	cfg := LoadFrom("")
	require.Equal(t, "https://chat.test/env", cfg.Webhook.URL)
	require.Equal(t, 7, cfg.DaysBack)
	require.Equal(t, "token", cfg.Proxy.Token)
	require.Equal(t, "sqlite", cfg.State.Driver)
	require.Equal(t, "/var/lib/cola/seen.db", cfg.State.Path)
	require.True(t, cfg.Archive.Enabled())
}

func TestDaysBackFallback(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-2", "1.5"} {
		t.Run("value "+raw, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(daysBackEnv, raw)
			require.Equal(t, 1, LoadFrom("").DaysBack)
		})
	}
}

func TestUnknownTimezoneRevertsToUTC(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Mars/Olympus\n"), 0o644))

	require.Equal(t, time.UTC, LoadFrom(path).Scheduler.Location())
}
