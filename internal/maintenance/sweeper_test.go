package maintenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticClock struct{ t time.Time }

func (c staticClock) Now() time.Time { return c.t }

func TestCleanupDirRemovesOnlyStaleLogs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, "debug.log")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o640))
	require.NoError(t, os.Chtimes(stale, now.Add(-10*24*time.Hour), now.Add(-10*24*time.Hour)))

	fresh := filepath.Join(dir, "user.log")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o640))

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o640))
	require.NoError(t, os.Chtimes(other, now.Add(-10*24*time.Hour), now.Add(-10*24*time.Hour)))

	removed, err := CleanupDir(dir, 7*24*time.Hour, staticClock{t: now})
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err, "non-log files are never touched")
}

func TestCleanupDirMissingDirIsClean(t *testing.T) {
	t.Parallel()

	removed, err := CleanupDir(t.TempDir()+"/absent", time.Hour, staticClock{t: time.Now()})
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	s := New(Config{Schedule: "not a schedule"}, staticClock{t: time.Now()}, nil, nil)
	require.Error(t, s.Start())
}

func TestSweeperStartStop(t *testing.T) {
	t.Parallel()

	s := New(Config{Schedule: "@hourly", LogDir: t.TempDir()}, staticClock{t: time.Now()}, nil, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
