package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ColaMonitor/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "nope", "seen.json"), nil)
	state := store.Load(context.Background())
	require.Equal(t, "", state.LastRun)
	require.Empty(t, state.TTBIDs)
}

func TestFileStoreLoadMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	state := NewFileStore(path, nil).Load(context.Background())
	require.Equal(t, domain.SeenLabels{TTBIDs: []string{}}, state)
}

func TestFileStoreSaveCreatesDirAndStamps(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "seen-labels.json")
	store := NewFileStore(path, nil)
	store.now = fixedClock(time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("EST", -5*3600)))

	state := domain.SeenLabels{TTBIDs: []string{"25001001000001", "25001001000002"}}
	require.NoError(t, store.Save(context.Background(), &state))
	require.Equal(t, "2025-03-04T10:06:07.008Z", state.LastRun)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Equal(t, "2025-03-04T10:06:07.008Z", onDisk["lastRun"])
	require.Equal(t, []any{"25001001000001", "25001001000002"}, onDisk["ttbIds"])

	require.Equal(t, state, store.Load(context.Background()))
}

func TestFileStoreSaveEmptyWritesArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path, nil)

	var state domain.SeenLabels
	require.NoError(t, store.Save(context.Background(), &state))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"ttbIds": []`)
	require.NotEmpty(t, state.LastRun)
}

func TestFileStoreSaveAdvancesTimestamp(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "seen.json"), nil)
	ctx := context.Background()

	store.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	state := store.Load(ctx)
	require.NoError(t, store.Save(ctx, &state))

	store.now = fixedClock(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	state = store.Load(ctx)
	require.NoError(t, store.Save(ctx, &state))

	require.Equal(t, "2025-01-02T00:00:00.000Z", store.Load(ctx).LastRun)
}
