package ports

import (
	"context"
	"time"

	"ColaMonitor/internal/domain"
)

// SessionProvider renders a registry page through the unblock proxy and
// returns the browser session together with the rendered markup.
type SessionProvider interface {
	Acquire(ctx context.Context, target string) (domain.Session, string, error)
	Configured() bool
}

// LabelSource pulls recently approved labels from the registry.
type LabelSource interface {
	FetchRecent(ctx context.Context, daysBack int) ([]domain.Label, error)
}

// ImageFetcher looks up the front-label image of one label. A nil image
// without error means the label has no usable image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, ttbID string) *domain.LabelImage
}

// DetailFetcher reads the public detail page of one label.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, ttbID string) (domain.LabelDetail, error)
}

// SeenStore persists notified label ids between runs.
type SeenStore interface {
	// Load never fails; missing or unreadable state yields an empty value.
	Load(ctx context.Context) domain.SeenLabels
	// Save stamps the current time onto state and writes it.
	Save(ctx context.Context, state *domain.SeenLabels) error
}

// Notifier delivers new labels to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, labels []domain.Label) error
}

// ImageArchive keeps a copy of fetched label images.
type ImageArchive interface {
	Store(ctx context.Context, ttbID string, image domain.LabelImage) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
