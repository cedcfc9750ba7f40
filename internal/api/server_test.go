package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/commands"
	"github.com/mbazhenov/scoutbot/internal/logrouter"
	"github.com/mbazhenov/scoutbot/internal/paginate"
	"github.com/mbazhenov/scoutbot/internal/permission"
	"github.com/mbazhenov/scoutbot/internal/report"
	"github.com/mbazhenov/scoutbot/internal/scheduler"
	"github.com/mbazhenov/scoutbot/internal/scout"
	storagemem "github.com/mbazhenov/scoutbot/internal/storage/memory"
	storemem "github.com/mbazhenov/scoutbot/internal/store/memory"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGen struct{}

func (uuidGen) NewID() (string, error) { return uuid.NewString(), nil }

type stubScanner struct {
	mu     sync.Mutex
	events chan scout.ScanEvent
}

func (s *stubScanner) Scan(context.Context, scout.Parameters) (<-chan scout.ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, nil
}

func (s *stubScanner) Reload(context.Context) error { return nil }

type testServer struct {
	http    *httptest.Server
	arena   *paginate.Arena
	scanner *stubScanner
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	ctx := context.Background()

	store := storemem.NewRecordStore()
	_, err := store.AddWhitelist(ctx, scout.WhitelistEntry{UserID: "wl-1", AddedBy: "owner-1"})
	require.NoError(t, err)
	require.NoError(t, store.SetSetting(ctx, scout.SettingUserChannel, "chan-user"))
	require.NoError(t, store.SetSetting(ctx, scout.SettingOutputChannel, "chan-output"))

	scanner := &stubScanner{events: make(chan scout.ScanEvent, 16)}
	clock := systemClock{}
	arena := paginate.NewArena(clock, 0, 0)
	queue := scheduler.New(scanner, clock, uuidGen{}, nil, scheduler.Config{}, nil)
	router := logrouter.New(store, logrouter.NewMemorySender(), clock, logrouter.Config{}, nil)
	gate := permission.NewGate([]string{"owner-1"}, store, nil)

	svc := commands.New(commands.Deps{
		Gate:    gate,
		Queue:   queue,
		Store:   store,
		Router:  router,
		Writer:  report.NewWriter(),
		Blobs:   storagemem.NewBlobStore(),
		Arena:   arena,
		Scanner: scanner,
		Clock:   clock,
		IDGen:   uuidGen{},
		Defaults: scout.Parameters{
			TopSites:       500,
			SiteTimeout:    30 * time.Second,
			MaxConnections: 50,
			Retries:        1,
			ParsingEnabled: true,
		},
	})

	srv := NewServer(svc, arena, nil, cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{http: ts, arena: arena, scanner: scanner}
}

func (ts *testServer) postJSON(t *testing.T, path string, payload any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func commandPayload(requesterID, command string, args ...string) map[string]any {
	return map[string]any{
		"command":   command,
		"args":      args,
		"requester": map[string]string{"id": requesterID, "display_name": "Tester"},
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.http.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCommandStatusMapping(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Config{})

	// Unknown command.
	resp, body := ts.postJSON(t, "/v1/commands", commandPayload("wl-1", "dance"), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "unknown command")

	// Permission denial.
	resp, body = ts.postJSON(t, "/v1/commands", commandPayload("stranger", "quicksearch", "wanderer"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "permission denied", body["error"])

	// Admission.
	resp, body = ts.postJSON(t, "/v1/commands", commandPayload("wl-1", "quicksearch", "wanderer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["job_id"])

	// Conflict while running.
	resp, _ = ts.postJSON(t, "/v1/commands", commandPayload("wl-1", "quicksearch", "other"), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	ts.scanner.events <- scout.ScanEvent{Terminal: true, Outcome: scout.OutcomeCompleted}
}

func TestCommandValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Config{})

	resp, _ := ts.postJSON(t, "/v1/commands", commandPayload("wl-1", "quicksearch", "??"), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := ts.postJSON(t, "/v1/commands", map[string]any{"command": "help"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "requester.id")
}

func TestPageNavigation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Config{})

	entries := make([]scout.FoundAccount, 25)
	for i := range entries {
		entries[i] = scout.FoundAccount{
			Site: fmt.Sprintf("site-%02d", i),
			URL:  fmt.Sprintf("https://site-%02d.example/user", i),
		}
	}
	ts.arena.Register("msg-1", entries, 10)

	resp, body := ts.postJSON(t, "/v1/pages/msg-1", map[string]any{"action": "next"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["index"])
	require.Equal(t, float64(3), body["total"])
	require.Equal(t, true, body["has_prev"])

	resp, body = ts.postJSON(t, "/v1/pages/msg-1", map[string]any{"action": "jump", "index": 99}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["index"], "out-of-range jump leaves the page unchanged")

	resp, body = ts.postJSON(t, "/v1/pages/msg-1", map[string]any{"action": "jump", "index": 2}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["index"])

	resp, _ = ts.postJSON(t, "/v1/pages/unknown", map[string]any{"action": "next"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.postJSON(t, "/v1/pages/msg-1", map[string]any{"action": "teleport"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKeyGuardsV1Only(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, Config{APIKey: "sekrit"})

	resp, err := http.Get(ts.http.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "health stays open")

	r, _ := ts.postJSON(t, "/v1/commands", commandPayload("wl-1", "help"), nil)
	require.Equal(t, http.StatusForbidden, r.StatusCode)

	r, _ = ts.postJSON(t, "/v1/commands", commandPayload("wl-1", "help"),
		map[string]string{"X-API-Key": "sekrit"})
	require.Equal(t, http.StatusOK, r.StatusCode)
}
