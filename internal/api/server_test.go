// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/engine"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/host"
	"github.com/teamarr/teamarr/internal/lifecycle"
	"github.com/teamarr/teamarr/internal/matchcache"
	"github.com/teamarr/teamarr/internal/sportsdata"
	"github.com/teamarr/teamarr/internal/stats"
	"github.com/teamarr/teamarr/internal/store"
)

type apiProvider struct {
	events map[string][]core.Event
}

func (p *apiProvider) Name() string                 { return "api-test" }
func (p *apiProvider) SupportsLeague(l string) bool { _, ok := p.events[l]; return ok }
func (p *apiProvider) Events(_ context.Context, l string, _ time.Time) []core.Event {
	return p.events[l]
}
func (p *apiProvider) TeamSchedule(context.Context, string, string, int) []core.Event { return nil }
func (p *apiProvider) Team(context.Context, string, string) *core.Team               { return nil }
func (p *apiProvider) Event(context.Context, string, string) *core.Event             { return nil }

type noStreams struct{}

func (noStreams) ListStreams(context.Context, string) ([]host.Stream, error) { return nil, nil }

type noHost struct{}

func (noHost) CreateChannel(context.Context, string, int, []string) (string, error) {
	return "ch", nil
}
func (noHost) DeleteChannel(context.Context, string) error         { return nil }
func (noHost) SetChannelEPG(context.Context, string, string) error { return nil }

func celticsLakers() []core.Event {
	return []core.Event{{
		ID:        "nba1",
		Name:      "Los Angeles Lakers at Boston Celtics",
		StartTime: time.Now().UTC().Add(4 * time.Hour),
		HomeTeam:  core.Team{ID: "2", Name: "Boston Celtics", ShortName: "Celtics"},
		AwayTeam:  core.Team{ID: "13", Name: "Los Angeles Lakers", ShortName: "Lakers"},
		League:    "nba",
		Status:    core.EventStatus{State: core.StateScheduled},
	}}
}

func newTestServer(t *testing.T, rateLimit int) (*Server, *store.Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "teamarr.db")
	st, err := store.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	provider := &apiProvider{events: map[string][]core.Event{"nba": celticsLakers()}}
	sports := sportsdata.New(provider)
	cache := matchcache.New(st, provider)
	cons := epg.NewConsolidator(t.TempDir(), "")

	eng := engine.New(engine.Options{
		Store:        st,
		Sports:       sports,
		Host:         noStreams{},
		Cache:        cache,
		Lifecycle:    lifecycle.NewManager(st, noHost{}),
		Consolidator: cons,
	})

	return New(Options{
		Store:        st,
		Engine:       eng,
		Stats:        stats.New(st),
		Cache:        cache,
		Consolidator: cons,
		DBPath:       dbPath,
		RateLimit:    rateLimit,
	}), st, dbPath
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGenerateEventsAdHoc(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/epg/events/generate", map[string]any{
		"leagues": []string{"nba"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, store.RunCompleted, body.Status)
	assert.Equal(t, 1, body.Programmes)
	assert.Positive(t, body.RunID)
}

func TestGenerateEventsBadDate(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/epg/events/generate", map[string]any{
		"leagues":     []string{"nba"},
		"target_date": "13-09-2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsXMLTVAdHoc(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodGet,
		"/api/v1/epg/events/xmltv?leagues=nba&channel_prefix=game.", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")

	var tv epg.TV
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &tv))
	require.Len(t, tv.Channels, 1)
	assert.Equal(t, "game.1", tv.Channels[0].ID)
	assert.Len(t, tv.Programs, 1)
}

func TestMatchEventByName(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/epg/events/match", map[string]any{
		"league":     "nba",
		"team1_name": "Celtics",
		"team2_name": "Lakers",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var ev core.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, "nba1", ev.ID)
}

func TestMatchEventByTeamID(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/epg/events/match", map[string]any{
		"league":   "nba",
		"team1_id": "2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMatchEventNotFound(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/epg/events/match", map[string]any{
		"league":     "nba",
		"team1_name": "Knicks",
		"team2_name": "Bulls",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchEventRequiresLeague(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/epg/events/match", map[string]any{
		"team1_name": "Celtics",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoints(t *testing.T) {
	s, st, _ := newTestServer(t, 0)
	h := s.Routes()

	run, err := st.OpenRun(context.Background(), "event_epg", nil)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(context.Background(), run.ID,
		store.RunCounts{StreamsMatched: 5, ProgrammesTotal: 5}, nil))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/stats/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/stats/runs?run_type=event_epg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runsBody struct {
		Runs []store.ProcessingRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runsBody))
	require.Len(t, runsBody.Runs, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/stats/runs/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/stats/runs/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/stats/history?days=3", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/stats/runs/cleanup?days=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleanup map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cleanup))
	assert.EqualValues(t, 0, cleanup["removed"])
}

func TestMigrationStatusAndBackupDownload(t *testing.T) {
	s, _, dbPath := newTestServer(t, 0)
	h := s.Routes()

	rec := doJSON(t, h, http.MethodGet, "/api/v1/migration/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, false, status["legacy_detected"])
	assert.Equal(t, false, status["backup_exists"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/migration/download-backup", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Park a fake legacy backup next to the live database.
	require.NoError(t, os.WriteFile(store.V1BackupPath(dbPath), []byte("legacy bytes"), 0o600))

	rec = doJSON(t, h, http.MethodGet, "/api/v1/migration/download-backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "legacy bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestMigrationArchiveNoOpOnCurrentSchema(t *testing.T) {
	s, _, _ := newTestServer(t, 0)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/migration/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["archived"])
}

func TestMutatingEndpointsRateLimited(t *testing.T) {
	s, _, _ := newTestServer(t, 2)
	h := s.Routes()

	body := map[string]any{"team1_name": "Celtics"} // missing league: cheap 400
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/api/v1/epg/events/match", body).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/api/v1/epg/events/match", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, h, http.MethodPost, "/api/v1/epg/events/match", body).Code)

	// Read endpoints stay unthrottled.
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/api/v1/stats/dashboard", nil).Code)
}
