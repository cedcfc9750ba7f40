package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

func TestNewRequiresBinary(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)

	s, err := New(Config{Binary: "/usr/local/bin/recon"}, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestArgsReflectParameters(t *testing.T) {
	t.Parallel()

	s, err := New(Config{
		Binary:    "/usr/local/bin/recon",
		ExtraArgs: []string{"--no-color"},
	}, nil)
	require.NoError(t, err)

	args := s.args(scout.Parameters{
		Username:       "wanderer",
		TopSites:       500,
		SiteTimeout:    30 * time.Second,
		MaxConnections: 50,
		Retries:        2,
		ParsingEnabled: false,
		IncludeSimilar: true,
		Tags:           []string{"coding"},
		Sites:          []string{"GitHub"},
	})

	require.Equal(t, []string{
		"wanderer",
		"--json-lines",
		"--top-sites", "500",
		"--timeout", "30",
		"--max-connections", "50",
		"--retries", "2",
		"--no-extracting",
		"--similar",
		"--tags", "coding",
		"--site", "GitHub",
		"--no-color",
	}, args)
}

func TestConvertStreamLines(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Binary: "recon"}, nil)
	require.NoError(t, err)

	lines := []string{
		`{"type":"progress","sites_checked":10}`,
		`{"type":"found","site":"GitHub","url":"https://github.com/wanderer","tags":["coding"]}`,
		`{"type":"progress","sites_checked":5}`,
		`{"type":"banner","text":"ignored"}`,
		`{"type":"found","site":"","url":"https://nowhere"}`,
	}

	checked := 0
	var events []scout.ScanEvent
	for _, line := range lines {
		var wl wireLine
		require.NoError(t, json.Unmarshal([]byte(line), &wl))
		if evt, ok := s.convert(wl, &checked); ok {
			events = append(events, evt)
		}
	}

	require.Len(t, events, 3, "unknown types and incomplete hits are dropped")
	require.Equal(t, 10, events[0].SitesChecked)
	require.Equal(t, "GitHub", events[1].NewEntries[0].Site)
	// A stale progress counter never rewinds the checked count.
	require.Equal(t, 10, events[2].SitesChecked)
}

func TestTerminalEventOutcomes(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Binary: "recon"}, nil)
	require.NoError(t, err)

	evt := s.terminalEvent(context.Background(), nil, nil)
	require.True(t, evt.Terminal)
	require.Equal(t, scout.OutcomeCompleted, evt.Outcome)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	evt = s.terminalEvent(cancelled, context.Canceled, []byte("killed"))
	require.Equal(t, scout.OutcomeCancelled, evt.Outcome)

	evt = s.terminalEvent(context.Background(), errFake{}, []byte("connection refused"))
	require.Equal(t, scout.OutcomeFailed, evt.Outcome)
	require.Contains(t, evt.Error, "connection refused")
}

type errFake struct{}

func (errFake) Error() string { return "exit status 1" }

func TestReloadRequiresConfiguredCommand(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Binary: "recon"}, nil)
	require.NoError(t, err)
	require.Error(t, s.Reload(context.Background()))
}

func TestTail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", tail([]byte("  short \n"), 512))
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	require.Len(t, tail(long, 512), 512)
}
