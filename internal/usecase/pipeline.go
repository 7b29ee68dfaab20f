package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ColaMonitor/internal/dedup"
	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/logging"
	"ColaMonitor/internal/metrics"
	"ColaMonitor/internal/ports"
)

// ErrNotificationFailed means delivery was not confirmed, so no label of the
// run was marked seen.
var ErrNotificationFailed = errors.New("notification not delivered")

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.LabelSource
	Images   ports.ImageFetcher
	Store    ports.SeenStore
	Notifier ports.Notifier
	Archive  ports.ImageArchive
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	DaysBack int
	// EnrichmentPause follows every image lookup.
	EnrichmentPause time.Duration
	Sleep           func(ctx context.Context, d time.Duration) error
}

// Result summarises one run.
type Result struct {
	RunID     string
	Scraped   int
	New       int
	WithImage int
	Notified  int
}

// Pipeline implements the scrape, dedup, enrich, notify, commit workflow.
type Pipeline struct {
	source          ports.LabelSource
	images          ports.ImageFetcher
	store           ports.SeenStore
	notifier        ports.Notifier
	archive         ports.ImageArchive
	metrics         *metrics.Recorder
	logger          *slog.Logger
	daysBack        int
	enrichmentPause time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
	now             func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.DaysBack < 1 {
		deps.DaysBack = 1
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	return &Pipeline{
		source:          deps.Source,
		images:          deps.Images,
		store:           deps.Store,
		notifier:        deps.Notifier,
		archive:         deps.Archive,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		daysBack:        deps.DaysBack,
		enrichmentPause: deps.EnrichmentPause,
		sleep:           deps.Sleep,
		now:             time.Now,
	}
}

// Run executes one monitoring pass. Labels are marked seen only after the
// notifier confirmed delivery; any earlier failure leaves the stored ids
// untouched.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	result := Result{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, result.RunID)
	log := logging.FromContext(ctx, p.logger)
	started := p.now()

	err := p.run(ctx, log, &result)

	outcome := metrics.RunSucceeded
	if err != nil {
		outcome = metrics.RunFailed
	}
	finished := p.now()
	p.metrics.RunFinished(outcome, finished.Sub(started), finished)

	return result, err
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, result *Result) error {
	if p.source == nil || p.store == nil || p.notifier == nil {
		return errors.New("pipeline is missing a source, store or notifier")
	}

	state := p.store.Load(ctx)
	p.info(log, "run started", "days_back", p.daysBack, "known_ids", len(state.TTBIDs), "last_run", state.LastRun)

	labels, err := p.source.FetchRecent(ctx, p.daysBack)
	if err != nil {
		return fmt.Errorf("scrape labels: %w", err)
	}
	result.Scraped = len(labels)
	p.metrics.Scraped(len(labels))

	if len(labels) == 0 {
		p.info(log, "no labels found")
		return p.persist(ctx, &state)
	}

	fresh := dedup.FilterNew(labels, state)
	result.New = len(fresh)
	p.metrics.New(len(fresh))
	p.info(log, "labels scraped", "found", len(labels), "new", len(fresh))

	if len(fresh) == 0 {
		return p.persist(ctx, &state)
	}

	if err := p.enrich(ctx, log, fresh, result); err != nil {
		return err
	}

	if err := p.notifier.Notify(ctx, fresh); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	updated := dedup.MarkSeen(state, dedup.IDs(fresh))
	if err := p.persist(ctx, &updated); err != nil {
		return err
	}
	result.Notified = len(fresh)
	p.metrics.Notified(len(fresh))
	p.info(log, "run completed", "notified", len(fresh), "with_image", result.WithImage)
	return nil
}

// enrich attaches front-label images in place. Lookups fail soft.
func (p *Pipeline) enrich(ctx context.Context, log *slog.Logger, labels []domain.Label, result *Result) error {
	if p.images == nil {
		return nil
	}

	for i := range labels {
		label := &labels[i]
		image := p.images.FetchImage(ctx, label.TTBID)
		if image != nil && len(image.Data) > 0 {
			label.ImageData = image.Data
			label.ImageFilename = image.Filename
			result.WithImage++
			p.metrics.ImageFetched()
			p.archiveImage(ctx, log, label.TTBID, *image)
		}

		if err := p.sleep(ctx, p.enrichmentPause); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) archiveImage(ctx context.Context, log *slog.Logger, ttbID string, image domain.LabelImage) {
	if p.archive == nil {
		return
	}
	if err := p.archive.Store(ctx, ttbID, image); err != nil && log != nil {
		log.Warn("image not archived", "ttb_id", ttbID, "error", err)
	}
}

func (p *Pipeline) persist(ctx context.Context, state *domain.SeenLabels) error {
	if err := p.store.Save(ctx, state); err != nil {
		return fmt.Errorf("persist seen labels: %w", err)
	}
	return nil
}

func (p *Pipeline) info(log *slog.Logger, msg string, args ...any) {
	if log == nil {
		return
	}
	log.Info(msg, args...)
}

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
