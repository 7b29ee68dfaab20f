package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ColaMonitor/internal/domain"
)

type staticSource struct {
	labels []domain.Label
	err    error
	calls  int
}

func (s *staticSource) FetchRecent(_ context.Context, _ int) ([]domain.Label, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Label, len(s.labels))
	copy(out, s.labels)
	return out, nil
}

// memoryStore mimics the persistence contract: Save stamps the time.
type memoryStore struct {
	state domain.SeenLabels
	saves int
	clock time.Time
	err   error
}

func (m *memoryStore) Load(_ context.Context) domain.SeenLabels {
	return domain.SeenLabels{
		LastRun: m.state.LastRun,
		TTBIDs:  append([]string{}, m.state.TTBIDs...),
	}
}

func (m *memoryStore) Save(_ context.Context, state *domain.SeenLabels) error {
	if m.err != nil {
		return m.err
	}
	m.clock = m.clock.Add(time.Hour)
	state.Touch(m.clock)
	m.saves++
	m.state = domain.SeenLabels{LastRun: state.LastRun, TTBIDs: append([]string{}, state.TTBIDs...)}
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]domain.Label
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, labels []domain.Label) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, append([]domain.Label(nil), labels...))
	return n.err
}

type mapImages map[string]*domain.LabelImage

func (m mapImages) FetchImage(_ context.Context, ttbID string) *domain.LabelImage {
	return m[ttbID]
}

type recordingArchive struct {
	stored []string
	err    error
}

func (a *recordingArchive) Store(_ context.Context, ttbID string, image domain.LabelImage) error {
	a.stored = append(a.stored, ttbID+"/"+image.Filename)
	return a.err
}

type pauses struct{ waits []time.Duration }

func (p *pauses) sleep(_ context.Context, d time.Duration) error {
	p.waits = append(p.waits, d)
	return nil
}

func twoLabels() []domain.Label {
	return []domain.Label{
		{TTBID: "ID001", BrandName: "First"},
		{TTBID: "ID002", BrandName: "Second"},
	}
}

func newPipeline(source *staticSource, store *memoryStore, notifier *recordingNotifier, extra func(*PipelineDeps)) *Pipeline {
	deps := PipelineDeps{
		Source:   source,
		Store:    store,
		Notifier: notifier,
		DaysBack: 1,
		Sleep:    (&pauses{}).sleep,
	}
	if extra != nil {
		extra(&deps)
	}
	return NewPipeline(deps)
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := &staticSource{labels: twoLabels()}
	store := &memoryStore{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	pipeline := newPipeline(source, store, notifier, nil)

	result, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, Result{RunID: result.RunID, Scraped: 2, New: 2, Notified: 2}, result)
	require.ElementsMatch(t, []string{"ID001", "ID002"}, store.state.TTBIDs)
	require.Equal(t, "2025-01-01T01:00:00.000Z", store.state.LastRun)
	require.Len(t, notifier.batches, 1)

	result, err = pipeline.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.New)
	require.Len(t, notifier.batches, 1, "nothing new, nothing sent")
	require.ElementsMatch(t, []string{"ID001", "ID002"}, store.state.TTBIDs)
	require.Equal(t, "2025-01-01T02:00:00.000Z", store.state.LastRun)
	require.Equal(t, 2, store.saves)
}

func TestRunNotificationFailureLeavesIDsUntouched(t *testing.T) {
	t.Parallel()

	source := &staticSource{labels: twoLabels()}
	store := &memoryStore{state: domain.SeenLabels{LastRun: "2024-12-31T00:00:00.000Z", TTBIDs: []string{"ID000"}}}
	notifier := &recordingNotifier{err: errors.New("batch 1 of 1: webhook delivery failed")}

	_, err := newPipeline(source, store, notifier, nil).Run(context.Background())
	require.ErrorIs(t, err, ErrNotificationFailed)
	require.Equal(t, []string{"ID000"}, store.state.TTBIDs)
	require.Equal(t, "2024-12-31T00:00:00.000Z", store.state.LastRun)
	require.Zero(t, store.saves)
}

func TestRunScrapeFailureDoesNotPersist(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("session: no content")
	store := &memoryStore{}
	notifier := &recordingNotifier{}

	_, err := newPipeline(&staticSource{err: sentinel}, store, notifier, nil).Run(context.Background())
	require.ErrorIs(t, err, sentinel)
	require.Zero(t, store.saves)
	require.Empty(t, notifier.batches)
}

func TestRunNoLabelsRefreshesTimestamp(t *testing.T) {
	t.Parallel()

	store := &memoryStore{clock: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	result, err := newPipeline(&staticSource{}, store, notifier, nil).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Scraped)
	require.Equal(t, 1, store.saves)
	require.Equal(t, "2025-06-01T01:00:00.000Z", store.state.LastRun)
	require.Empty(t, notifier.batches)
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := &memoryStore{err: errors.New("disk full")}
	_, err := newPipeline(&staticSource{labels: twoLabels()}, store, &recordingNotifier{}, nil).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestRunEnrichesWithImages(t *testing.T) {
	t.Parallel()

	p := &pauses{}
	archive := &recordingArchive{err: errors.New("bucket gone")}
	notifier := &recordingNotifier{}
	store := &memoryStore{}

	pipeline := newPipeline(&staticSource{labels: twoLabels()}, store, notifier, func(d *PipelineDeps) {
		d.Images = mapImages{
			"ID002": {Data: []byte{1, 2, 3}, Filename: "front.png", ContentType: "image/png"},
		}
		d.Archive = archive
		d.EnrichmentPause = 500 * time.Millisecond
		d.Sleep = p.sleep
	})

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err, "archive failures are soft")
	require.Equal(t, 1, result.WithImage)
	require.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, p.waits)
	require.Equal(t, []string{"ID002/front.png"}, archive.stored)

	sent := notifier.batches[0]
	require.False(t, sent[0].HasImage())
	require.True(t, sent[1].HasImage())
	require.Equal(t, "front.png", sent[1].ImageFilename)
	require.ElementsMatch(t, []string{"ID001", "ID002"}, store.state.TTBIDs)
}

func TestRunOnlyNotifiesUnseen(t *testing.T) {
	t.Parallel()

	store := &memoryStore{state: domain.SeenLabels{TTBIDs: []string{"ID001"}}}
	notifier := &recordingNotifier{}

	result, err := newPipeline(&staticSource{labels: twoLabels()}, store, notifier, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.New)
	require.Len(t, notifier.batches[0], 1)
	require.Equal(t, "ID002", notifier.batches[0][0].TTBID)
	require.ElementsMatch(t, []string{"ID001", "ID002"}, store.state.TTBIDs)
}
