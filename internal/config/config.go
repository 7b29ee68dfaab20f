package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "America/New_York"
	configPathEnv    = "COLA_MONITOR_CONFIG"
	webhookURLEnv    = "WEBHOOK_URL"
	daysBackEnv      = "DAYS_BACK"
	proxyTokenEnv    = "BROWSERLESS_TOKEN"
	proxyURLEnv      = "BROWSERLESS_URL"
	stateDriverEnv   = "STATE_DRIVER"
	statePathEnv     = "STATE_PATH"
	logLevelEnv      = "LOG_LEVEL"
	logFormatEnv     = "LOG_FORMAT"
	metricsFileEnv   = "METRICS_TEXTFILE"
	minioEndpointEnv = "MINIO_ENDPOINT"
	minioAccessEnv   = "MINIO_ACCESS_KEY"
	minioSecretEnv   = "MINIO_SECRET_KEY"
	minioBucketEnv   = "MINIO_BUCKET"
)

// ErrMissingWebhookURL is returned by Validate when no notification endpoint is set.
var ErrMissingWebhookURL = errors.New("WEBHOOK_URL is not set")

// Config holds high-level settings required across the application.
type Config struct {
	DaysBack  int             `yaml:"daysBack"`
	Registry  RegistryConfig  `yaml:"registry"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Pacing    PacingConfig    `yaml:"pacing"`
	State     StateConfig     `yaml:"state"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// RegistryConfig points at the COLA public search application.
type RegistryConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	ClassTypeFrom  string        `yaml:"classTypeFrom"`
	ClassTypeTo    string        `yaml:"classTypeTo"`
	UserAgent      string        `yaml:"userAgent"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// The registry serves an incomplete certificate chain, so verification
	// is off for registry requests unless this is set.
	VerifyTLS bool `yaml:"verifyTls"`
}

// ProxyConfig describes the browser-rendering unblock service.
type ProxyConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Token          string        `yaml:"token"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// WebhookConfig wires the chat webhook the digests are posted to.
type WebhookConfig struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Footer         string        `yaml:"footer"`
	Color          int           `yaml:"color"`
	BatchSize      int           `yaml:"batchSize"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// PacingConfig holds every fixed pause and the retry schedule.
type PacingConfig struct {
	AfterHeader       time.Duration `yaml:"afterHeader"`
	AfterImage        time.Duration `yaml:"afterImage"`
	BetweenBatches    time.Duration `yaml:"betweenBatches"`
	AfterEnrichment   time.Duration `yaml:"afterEnrichment"`
	RetryBase         time.Duration `yaml:"retryBase"`
	DefaultRetryAfter time.Duration `yaml:"defaultRetryAfter"`
	MaxAttempts       int           `yaml:"maxAttempts"`
}

// StateConfig selects where notified ids are persisted.
type StateConfig struct {
	Driver string `yaml:"driver"` // file, sqlite or postgres
	Path   string `yaml:"path"`   // file path or DSN
}

// SchedulerConfig defines when watch mode runs the pipeline.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the node-exporter textfile dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ArchiveConfig is the optional S3-compatible store for fetched label images.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSsl"`
}

// Enabled reports whether an archive endpoint is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}

// Load reads the YAML file named by COLA_MONITOR_CONFIG (if any).
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom reads YAML configuration (if present), fills the gaps with
// defaults and applies environment overrides.
func LoadFrom(path string) Config {
	var cfg Config

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = Config{}
		}
	}

	if err := mergo.Merge(&cfg, defaultConfig()); err != nil {
		log.Printf("config: cannot apply defaults: %v", err)
		cfg = defaultConfig()
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks the settings every run needs before any network work.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return ErrMissingWebhookURL
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Webhook.URL = v
	}

	if v, ok := os.LookupEnv(daysBackEnv); ok {
		c.DaysBack = parseDaysBack(v)
	}

	if v := os.Getenv(proxyTokenEnv); v != "" {
		c.Proxy.Token = v
	}
	if v := os.Getenv(proxyURLEnv); v != "" {
		c.Proxy.Endpoint = v
	}

	if v := os.Getenv(stateDriverEnv); v != "" {
		c.State.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(statePathEnv); v != "" {
		c.State.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(metricsFileEnv); v != "" {
		c.Metrics.Textfile = v
	}

	if v := os.Getenv(minioEndpointEnv); v != "" {
		c.Archive.Endpoint = v
	}
	if v := os.Getenv(minioAccessEnv); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv(minioSecretEnv); v != "" {
		c.Archive.SecretKey = v
	}
	if v := os.Getenv(minioBucketEnv); v != "" {
		c.Archive.Bucket = v
	}

	if c.DaysBack < 1 {
		c.DaysBack = 1
	}
}

// parseDaysBack falls back to a one day window for blank or non-numeric input.
func parseDaysBack(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	return Config{
		DaysBack: 1,
		Registry: RegistryConfig{
			BaseURL:        "https://www.ttbonline.gov/colasonline",
			ClassTypeFrom:  "100",
			ClassTypeTo:    "199",
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 60 * time.Second,
		},
		Proxy: ProxyConfig{
			Endpoint:       "https://production-sfo.browserless.io/unblock",
			RequestTimeout: 120 * time.Second,
		},
		Webhook: WebhookConfig{
			Username:       "TTB COLA Monitor",
			Footer:         "TTB COLA Registry",
			Color:          0xd4a574,
			BatchSize:      10,
			RequestTimeout: 30 * time.Second,
		},
		Pacing: DefaultPacing(),
		State: StateConfig{
			Driver: "file",
			Path:   "data/seen-labels.json",
		},
		Scheduler: SchedulerConfig{CronExpression: "0 */6 * * *", Timezone: defaultTimezone},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultPacing returns the pauses the registry and webhook tolerate.
func DefaultPacing() PacingConfig {
	return PacingConfig{
		AfterHeader:       500 * time.Millisecond,
		AfterImage:        1000 * time.Millisecond,
		BetweenBatches:    1000 * time.Millisecond,
		AfterEnrichment:   500 * time.Millisecond,
		RetryBase:         2000 * time.Millisecond,
		DefaultRetryAfter: 2000 * time.Millisecond,
		MaxAttempts:       3,
	}
}
