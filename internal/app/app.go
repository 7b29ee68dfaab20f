package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ColaMonitor/internal/config"
	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/infrastructure/archive"
	"ColaMonitor/internal/infrastructure/browserless"
	"ColaMonitor/internal/infrastructure/colas"
	"ColaMonitor/internal/infrastructure/scheduler"
	"ColaMonitor/internal/infrastructure/storage"
	"ColaMonitor/internal/infrastructure/webhook"
	"ColaMonitor/internal/logging"
	"ColaMonitor/internal/metrics"
	"ColaMonitor/internal/ports"
	"ColaMonitor/internal/usecase"
)

const stopTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	registry *colas.Client
	details  ports.DetailFetcher
	notifier *webhook.Notifier

	closeDB  func() error
	pipeline *usecase.Pipeline
}

// New builds the adapters that need no I/O to construct. The seen-label store
// is opened on first use so that commands not touching it stay offline.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	recorder := metrics.NewRecorder()
	sessions := browserless.New(cfg.Proxy.Endpoint, cfg.Proxy.Token, cfg.Proxy.RequestTimeout)
	registry := colas.NewClient(cfg.Registry, sessions, cfg.Scheduler.Location(), baseLogger.With("component", "registry"))
	notifier := webhook.NewNotifier(cfg.Webhook, cfg.Pacing, registry.DetailURL,
		baseLogger.With("component", "webhook"),
		webhook.WithRecorder(recorder),
	)

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		metrics:  recorder,
		registry: registry,
		details:  registry,
		notifier: notifier,
	}
}

// Run performs one pipeline pass and exports metrics afterwards.
func (a *Application) Run(ctx context.Context) (usecase.Result, error) {
	pipeline, err := a.ensurePipeline(ctx)
	if err != nil {
		return usecase.Result{}, err
	}

	result, runErr := pipeline.Run(ctx)
	a.flushMetrics()
	return result, runErr
}

// Watch runs the pipeline on the configured cron schedule until ctx is done.
// With runNow the first pass starts immediately.
func (a *Application) Watch(ctx context.Context, runNow bool) error {
	pipeline, err := a.ensurePipeline(ctx)
	if err != nil {
		return err
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "cron"))
	if err := driver.Validate(); err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, pipeline, a.logger.With("component", "scheduler"))
	sched.AfterRun = func(usecase.Result, error) { a.flushMetrics() }

	if runNow {
		if _, err := a.Run(ctx); err != nil {
			a.logger.Error("initial run failed", "error", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if next, err := driver.Next(time.Now()); err == nil {
		a.logger.Info("watching registry", "cron", a.cfg.Scheduler.CronExpression, "next_run", next)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// SendTest posts the sample notification.
func (a *Application) SendTest(ctx context.Context) error {
	return a.notifier.SendTest(ctx)
}

// Detail fetches the public detail page of one label.
func (a *Application) Detail(ctx context.Context, ttbID string) (domain.LabelDetail, error) {
	return a.details.FetchDetail(ctx, ttbID)
}

// DetailURL links to the public detail page of one label.
func (a *Application) DetailURL(ttbID string) string {
	return a.registry.DetailURL(ttbID)
}

// Close releases the state database, if one was opened.
func (a *Application) Close() error {
	if a.closeDB == nil {
		return nil
	}
	return a.closeDB()
}

func (a *Application) ensurePipeline(ctx context.Context) (*usecase.Pipeline, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:          a.registry,
		Images:          a.registry,
		Store:           store,
		Notifier:        a.notifier,
		Archive:         a.openArchive(ctx),
		Metrics:         a.metrics,
		Logger:          a.logger.With("component", "pipeline"),
		DaysBack:        a.cfg.DaysBack,
		EnrichmentPause: a.cfg.Pacing.AfterEnrichment,
	})
	return a.pipeline, nil
}

func (a *Application) openStore(ctx context.Context) (ports.SeenStore, error) {
	logger := a.logger.With("component", "state")

	switch a.cfg.State.Driver {
	case "", "file":
		return storage.NewFileStore(a.cfg.State.Path, logger), nil
	case storage.DriverSQLite, storage.DriverPostgres:
		store, err := storage.OpenSQLStore(ctx, a.cfg.State.Driver, a.cfg.State.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		a.closeDB = store.Close
		return store, nil
	default:
		return nil, errors.New("unknown state driver " + a.cfg.State.Driver)
	}
}

// openArchive returns nil when archiving is off or the bucket is unusable.
func (a *Application) openArchive(ctx context.Context) ports.ImageArchive {
	if !a.cfg.Archive.Enabled() {
		return nil
	}

	store, err := archive.NewMinioArchive(a.cfg.Archive)
	if err != nil {
		a.logger.Warn("image archive disabled", "error", err)
		return nil
	}
	if err := store.EnsureBucket(ctx); err != nil {
		a.logger.Warn("image archive disabled", "error", err)
		return nil
	}
	return store
}

func (a *Application) flushMetrics() {
	if err := a.metrics.Flush(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics not exported", "error", err)
	}
}
