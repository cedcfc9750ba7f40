package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestWhitelistRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	listed, err := store.IsWhitelisted(ctx, "u1")
	require.NoError(t, err)
	require.False(t, listed)

	added, err := store.AddWhitelist(ctx, scout.WhitelistEntry{
		UserID:  "u1",
		AddedBy: "owner",
		Notes:   "trusted analyst",
		AddedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, added)

	// Duplicate add reports false and keeps the original row.
	added, err = store.AddWhitelist(ctx, scout.WhitelistEntry{UserID: "u1", AddedBy: "other"})
	require.NoError(t, err)
	require.False(t, added)

	listed, err = store.IsWhitelisted(ctx, "u1")
	require.NoError(t, err)
	require.True(t, listed)

	entries, err := store.ListWhitelist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "u1", entries[0].UserID)
	require.Equal(t, "owner", entries[0].AddedBy)
	require.Equal(t, "trusted analyst", entries[0].Notes)

	removed, err := store.RemoveWhitelist(ctx, "u1")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = store.RemoveWhitelist(ctx, "u1")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestListWhitelistOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"third", "first", "second"} {
		offsets := map[string]time.Duration{"first": 0, "second": time.Hour, "third": 2 * time.Hour}
		_, err := store.AddWhitelist(ctx, scout.WhitelistEntry{
			UserID:  id,
			AddedBy: "owner",
			AddedAt: base.Add(offsets[id]),
		})
		require.NoError(t, err, "entry %d", i)
	}

	entries, err := store.ListWhitelist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "first", entries[0].UserID)
	require.Equal(t, "second", entries[1].UserID)
	require.Equal(t, "third", entries[2].UserID)
}

func TestSettingsUpsertAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	_, ok, err := store.GetSetting(ctx, scout.SettingDebugChannel)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SetSetting(ctx, scout.SettingDebugChannel, "chan-123"))
	require.NoError(t, store.SetSetting(ctx, scout.SettingDebugChannel, "chan-456"))

	v, ok, err := store.GetSetting(ctx, scout.SettingDebugChannel)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "chan-456", v)

	require.NoError(t, store.SetSetting(ctx, scout.SettingTopSites, "750"))
	all, err := store.AllSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		scout.SettingDebugChannel: "chan-456",
		scout.SettingTopSites:     "750",
	}, all)

	deleted, err := store.DeleteSetting(ctx, scout.SettingDebugChannel)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = store.DeleteSetting(ctx, scout.SettingDebugChannel)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestRecordSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	rec := scout.SearchRecord{
		UserID:        "u1",
		Username:      "wanderer",
		SitesChecked:  500,
		AccountsFound: 7,
		Duration:      42 * time.Second,
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.RecordSearch(ctx, rec))
	require.NoError(t, store.RecordSearch(ctx, rec))
}

func TestOpenCreatesDataDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/data"
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
