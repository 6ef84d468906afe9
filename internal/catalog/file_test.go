package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

func sampleEntries() []refresh.Entry {
	return []refresh.Entry{
		{
			ID:     "cam-1",
			URL:    "https://cams.example.com/snap?id=cam-1&ts=1",
			Status: refresh.StatusVerified,
			Extra: map[string]json.RawMessage{
				"operator": json.RawMessage(`"metro"`),
			},
		},
		{
			ID:     "cam-2",
			URL:    "https://cams.example.com/snap?id=cam-2&ts=1",
			Status: refresh.StatusFailedRetries,
		},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "catalog.json")
	store := NewFileStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, path, sampleEntries()))

	got, err := store.Load(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "cam-1", got[0].ID)
	require.Equal(t, refresh.StatusVerified, got[0].Status)
	require.JSONEq(t, `"metro"`, string(got[0].Extra["operator"]))

	// No temp files left behind.
	leftovers, err := filepath.Glob(filepath.Join(dir, "out", ".*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestFileStore_SaveReplacesAtomically(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	store := NewFileStore()
	ctx := context.Background()

	first := sampleEntries()
	require.NoError(t, store.Save(ctx, path, first))

	second := sampleEntries()
	second[0].LastRefreshedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, path, second))

	got, err := store.Load(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, second[0].LastRefreshedAt, got[0].LastRefreshedAt)
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	t.Parallel()
	store := NewFileStore()
	_, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_FailedSavePreservesPrevious(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	store := NewFileStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, path, sampleEntries()))

	// An unencodable entry fails the write before the rename.
	broken := sampleEntries()
	broken[0].Extra = map[string]json.RawMessage{
		"bad": json.RawMessage(`{not json`),
	}
	err := store.Save(ctx, path, broken)
	require.Error(t, err)

	got, loadErr := store.Load(ctx, path)
	require.NoError(t, loadErr)
	require.Len(t, got, 2)
	require.Equal(t, "cam-1", got[0].ID)

	// The failed attempt leaves no temp file behind.
	leftovers, globErr := filepath.Glob(filepath.Join(dir, ".*"))
	require.NoError(t, globErr)
	require.Empty(t, leftovers)
}

func TestMemoryStore_Isolation(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	store.Seed("in.json", sampleEntries())

	got, err := store.Load(ctx, "in.json")
	require.NoError(t, err)
	got[0].Status = refresh.StatusFailedPermanent

	again, err := store.Load(ctx, "in.json")
	require.NoError(t, err)
	require.Equal(t, refresh.StatusVerified, again[0].Status)

	_, err = store.Load(ctx, "missing.json")
	require.Error(t, err)
}
