package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// manualDriver fires the registered job on demand.
type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(_ context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipelineOnTrigger(t *testing.T) {
	t.Parallel()

	source := &staticSource{labels: twoLabels()}
	store := &memoryStore{}
	pipeline := newPipeline(source, store, &recordingNotifier{}, nil)

	driver := &manualDriver{}
	s := NewScheduler(driver, pipeline, nil)

	var results []Result
	s.AfterRun = func(r Result, err error) {
		require.NoError(t, err)
		results = append(results, r)
	}

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Now())
	driver.job(time.Now())

	require.Len(t, results, 2)
	require.Equal(t, 2, results[0].Notified)
	require.Equal(t, 0, results[1].New)
	require.Equal(t, 2, source.calls)

	require.NoError(t, s.Stop(context.Background()))
	require.True(t, driver.stopped)
}

func TestSchedulerWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
