package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ColaMonitor/internal/domain"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()

	store, err := OpenSQLStore(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "state", "seen.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreEmpty(t *testing.T) {
	t.Parallel()

	state := openTestStore(t).Load(context.Background())
	require.Equal(t, domain.SeenLabels{TTBIDs: []string{}}, state)
}

func TestSQLStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	store.now = fixedClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	state := domain.SeenLabels{TTBIDs: []string{"ID001", "ID002"}}
	require.NoError(t, store.Save(ctx, &state))

	got := store.Load(ctx)
	require.Equal(t, "2025-01-01T12:00:00.000Z", got.LastRun)
	require.ElementsMatch(t, []string{"ID001", "ID002"}, got.TTBIDs)

	store.now = fixedClock(time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC))
	got.TTBIDs = append(got.TTBIDs, "ID002", "ID003")
	require.NoError(t, store.Save(ctx, &got))

	again := store.Load(ctx)
	require.Equal(t, "2025-01-02T12:00:00.000Z", again.LastRun)
	require.ElementsMatch(t, []string{"ID001", "ID002", "ID003"}, again.TTBIDs)
}

func TestSQLStoreTimestampOnlySave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	state := store.Load(ctx)
	require.NoError(t, store.Save(ctx, &state))

	got := store.Load(ctx)
	require.NotEmpty(t, got.LastRun)
	require.Empty(t, got.TTBIDs)
}

func TestOpenSQLStoreUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := OpenSQLStore(context.Background(), "mysql", "dsn", nil)
	require.Error(t, err)
}
