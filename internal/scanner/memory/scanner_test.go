package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

func collect(t *testing.T, events <-chan scout.ScanEvent) []scout.ScanEvent {
	t.Helper()
	var out []scout.ScanEvent
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, evt)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining events")
		}
	}
}

func TestScanEmitsProgressAndTerminal(t *testing.T) {
	t.Parallel()

	s := New(Config{Sites: []string{"a", "b", "c", "d"}})
	events, err := s.Scan(context.Background(), scout.Parameters{Username: "wanderer", TopSites: 4})
	require.NoError(t, err)

	all := collect(t, events)
	require.NotEmpty(t, all)

	last := all[len(all)-1]
	require.True(t, last.Terminal)
	require.Equal(t, scout.OutcomeCompleted, last.Outcome)

	progress := all[:len(all)-1]
	require.Len(t, progress, 4)
	for i, evt := range progress {
		require.False(t, evt.Terminal)
		require.Equal(t, i+1, evt.SitesChecked)
	}
}

func TestScanIsDeterministicPerUsername(t *testing.T) {
	t.Parallel()

	s := New(Config{})
	found := func() []scout.FoundAccount {
		events, err := s.Scan(context.Background(), scout.Parameters{Username: "wanderer", TopSites: 10})
		require.NoError(t, err)
		var out []scout.FoundAccount
		for _, evt := range collect(t, events) {
			out = append(out, evt.NewEntries...)
		}
		return out
	}

	require.Equal(t, found(), found())
}

func TestScanHonorsTopSites(t *testing.T) {
	t.Parallel()

	s := New(Config{Sites: []string{"a", "b", "c", "d", "e"}})
	events, err := s.Scan(context.Background(), scout.Parameters{Username: "wanderer", TopSites: 2})
	require.NoError(t, err)

	all := collect(t, events)
	require.Equal(t, 2, all[len(all)-2].SitesChecked)
}

func TestScanCancellation(t *testing.T) {
	t.Parallel()

	s := New(Config{StepDelay: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.Scan(ctx, scout.Parameters{Username: "wanderer", TopSites: 10})
	require.NoError(t, err)

	cancel()
	all := collect(t, events)
	if len(all) > 0 {
		last := all[len(all)-1]
		if last.Terminal {
			require.Equal(t, scout.OutcomeCancelled, last.Outcome)
		}
	}
}
