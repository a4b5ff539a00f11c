/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/logbuffer"
	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

const testRulesDoc = `
settings:
  song_separation: 180
  artist_separation: 60
`

type fixture struct {
	router    chi.Router
	db        *gorm.DB
	catalog   *store.CatalogStore
	history   *store.HistoryStore
	rulesPath string
	bus       *events.Bus
	logBuf    *logbuffer.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Song{}, &models.PlayLog{}, &models.AuditReport{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(rulesPath, []byte(testRulesDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	rulesMgr, err := rules.NewManager(rulesPath)
	if err != nil {
		t.Fatalf("rules.NewManager: %v", err)
	}

	logger := zerolog.Nop()
	catalog := store.NewCatalogStore(db, logger)
	history := store.NewHistoryStore(db, logger)
	reports := store.NewReportStore(db, logger)
	bus := events.NewBus()

	logBuf := logbuffer.New(100)
	handler := New(db, catalog, history, reports, rulesMgr, nil, bus, logBuf, "", logger)
	router := chi.NewRouter()
	handler.Routes(router)

	return &fixture{
		router:    router,
		db:        db,
		catalog:   catalog,
		history:   history,
		rulesPath: rulesPath,
		bus:       bus,
		logBuf:    logBuf,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (f *fixture) seed(t *testing.T, song models.Song) models.Song {
	t.Helper()
	if err := f.catalog.Create(context.Background(), &song); err != nil {
		t.Fatalf("seed song: %v", err)
	}
	return song
}

func apiSong(id string, category models.Category) models.Song {
	return models.Song{
		ID:              id,
		Title:           "Song " + id,
		Artist:          "Artist " + id,
		Genre:           "Rock",
		Category:        category,
		Tempo:           models.TempoMedium,
		Gender:          "Male",
		DurationSeconds: 180,
		Active:          true,
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestSongsCreateAndGet(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/songs/", map[string]any{
		"title":    "Night Groove",
		"artist":   "The Night Owls",
		"genre":    "Funk",
		"category": "Current",
		"tempo":    "Fast",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Song
	decode(t, rec, &created)
	if created.ID == "" || !created.Active {
		t.Errorf("created = %+v", created)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/songs/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/songs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSongsCreateValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/songs/", map[string]any{"artist": "No Title", "category": "Gold"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing title: status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/songs/", map[string]any{"title": "T", "artist": "A", "category": "Nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad category: status = %d, want 400", rec.Code)
	}
}

func TestSongsListFiltersByCategory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, apiSong("a", models.CategoryGold))
	f.seed(t, apiSong("b", models.CategoryCurrent))

	rec := f.do(t, http.MethodGet, "/api/v1/songs/?category=Gold", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Songs []models.Song `json:"songs"`
	}
	decode(t, rec, &body)
	if len(body.Songs) != 1 || body.Songs[0].ID != "a" {
		t.Errorf("songs = %+v", body.Songs)
	}
}

func TestScheduleNextPicksAndReportsViolations(t *testing.T) {
	f := newFixture(t)
	f.seed(t, apiSong("a", models.CategoryGold))

	rec := f.do(t, http.MethodGet, "/api/v1/schedule/next?seed=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Song       models.Song        `json:"song"`
		Category   models.Category    `json:"category"`
		Violations []models.Violation `json:"violations"`
	}
	decode(t, rec, &body)
	if body.Song.ID != "a" || body.Category != models.CategoryGold {
		t.Errorf("pick = %+v", body)
	}
}

func TestScheduleNextDeterministicSeed(t *testing.T) {
	f := newFixture(t)
	for _, category := range models.Categories {
		f.seed(t, apiSong("1-"+string(category), category))
		f.seed(t, apiSong("2-"+string(category), category))
	}

	var first struct {
		Song models.Song `json:"song"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/v1/schedule/next?seed=42&at=2026-08-25T14:00:00Z", nil), &first)
	for i := 0; i < 3; i++ {
		var again struct {
			Song models.Song `json:"song"`
		}
		decode(t, f.do(t, http.MethodGet, "/api/v1/schedule/next?seed=42&at=2026-08-25T14:00:00Z", nil), &again)
		if again.Song.ID != first.Song.ID {
			t.Fatalf("seed 42 picked %s then %s", first.Song.ID, again.Song.ID)
		}
	}
}

func TestScheduleNextNoEligibleSong(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/schedule/next", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != "no_eligible_song" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestScheduleNextBadParams(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/api/v1/schedule/next?at=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad at: status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/schedule/next?seed=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad seed: status = %d, want 400", rec.Code)
	}
}

func TestHistoryAppendUpdatesPlayStats(t *testing.T) {
	f := newFixture(t)
	song := f.seed(t, apiSong("a", models.CategoryGold))

	playedAt := time.Date(2026, 8, 25, 8, 30, 0, 0, time.UTC)
	rec := f.do(t, http.MethodPost, "/api/v1/history/", map[string]any{
		"song_id":   song.ID,
		"played_at": playedAt.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entry models.PlayLog
	decode(t, rec, &entry)
	if !entry.Completed || entry.Daypart != "Morning Drive" {
		t.Errorf("entry = %+v", entry)
	}

	loaded, err := f.catalog.ByID(context.Background(), song.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if loaded.PlayCount != 1 || loaded.LastPlayed == nil {
		t.Errorf("play stats not rolled forward: %+v", loaded)
	}
}

func TestHistoryAppendSkippedKeepsRestClock(t *testing.T) {
	f := newFixture(t)
	song := f.seed(t, apiSong("a", models.CategoryGold))

	rec := f.do(t, http.MethodPost, "/api/v1/history/", map[string]any{
		"song_id":     song.ID,
		"skipped":     true,
		"skip_reason": "operator override",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var entry models.PlayLog
	decode(t, rec, &entry)
	if !entry.Skipped || entry.Completed {
		t.Errorf("entry = %+v", entry)
	}

	loaded, _ := f.catalog.ByID(context.Background(), song.ID)
	if loaded.PlayCount != 0 || loaded.LastPlayed != nil {
		t.Errorf("skipped play must not touch play stats: %+v", loaded)
	}
}

func TestHistoryAppendUnknownSong(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/history/", map[string]any{"song_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHistoryRecent(t *testing.T) {
	f := newFixture(t)
	song := f.seed(t, apiSong("a", models.CategoryGold))

	for i := 0; i < 3; i++ {
		if _, err := f.history.Append(context.Background(), store.AppendRequest{
			SongID:   song.ID,
			PlayedAt: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/v1/history/recent?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Plays []struct {
			Play models.PlayLog `json:"play"`
			Song models.Song    `json:"song"`
		} `json:"plays"`
	}
	decode(t, rec, &body)
	if len(body.Plays) != 2 {
		t.Fatalf("plays = %d, want 2", len(body.Plays))
	}
	if body.Plays[0].Song.ID != song.ID {
		t.Errorf("joined song = %s", body.Plays[0].Song.ID)
	}
}

func TestRulesSummary(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/rules/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var summary rules.Summary
	decode(t, rec, &summary)
	if summary.SongSeparation != 180 || summary.ArtistSeparation != 60 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRulesValidateBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules/validate", strings.NewReader("settings: [broken"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["valid"] != false {
		t.Errorf("valid = %v", body["valid"])
	}

	// An empty body validates the active document.
	rec = f.do(t, http.MethodPost, "/api/v1/rules/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	decode(t, rec, &body)
	// The fixture document has no hourly rules, so it is usable but flagged.
	if body["valid"] != false {
		t.Errorf("valid = %v, want false with issues", body["valid"])
	}
}

func TestRulesReload(t *testing.T) {
	f := newFixture(t)

	if err := os.WriteFile(f.rulesPath, []byte("settings:\n  song_separation: 90\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := f.do(t, http.MethodPost, "/api/v1/rules/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var summary rules.Summary
	decode(t, f.do(t, http.MethodGet, "/api/v1/rules/summary", nil), &summary)
	if summary.SongSeparation != 90 {
		t.Errorf("SongSeparation = %d, want reloaded 90", summary.SongSeparation)
	}
}

func TestRulesReloadKeepsPreviousOnParseFailure(t *testing.T) {
	f := newFixture(t)

	if err := os.WriteFile(f.rulesPath, []byte("settings: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := f.do(t, http.MethodPost, "/api/v1/rules/reload", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var summary rules.Summary
	decode(t, f.do(t, http.MethodGet, "/api/v1/rules/summary", nil), &summary)
	if summary.SongSeparation != 180 {
		t.Errorf("SongSeparation = %d, want previous 180", summary.SongSeparation)
	}
}

func TestAuditRunAndLatest(t *testing.T) {
	f := newFixture(t)
	song := f.seed(t, apiSong("a", models.CategoryGold))
	if _, err := f.history.Append(context.Background(), store.AppendRequest{
		SongID:    song.ID,
		PlayedAt:  time.Now().UTC().Add(-time.Hour),
		Completed: true,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/audits/", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report struct {
		Summary struct {
			TotalPlays int `json:"total_plays"`
		} `json:"summary"`
	}
	decode(t, rec, &report)
	if report.Summary.TotalPlays != 1 {
		t.Errorf("TotalPlays = %d, want 1", report.Summary.TotalPlays)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/audits/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest status = %d", rec.Code)
	}
	var latest map[string]any
	decode(t, rec, &latest)
	if latest["id"] == "" || latest["summary"] == nil {
		t.Errorf("latest = %v", latest)
	}
}

func TestAuditLatestEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/audits/latest", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatsQuickAndLibrary(t *testing.T) {
	f := newFixture(t)
	song := f.seed(t, apiSong("a", models.CategoryCurrent))
	if _, err := f.history.Append(context.Background(), store.AppendRequest{
		SongID:   song.ID,
		PlayedAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/stats/quick?hours=6", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quick status = %d", rec.Code)
	}
	var quick struct {
		PeriodHours int `json:"period_hours"`
		TotalPlays  int `json:"total_plays"`
	}
	decode(t, rec, &quick)
	if quick.PeriodHours != 6 || quick.TotalPlays != 1 {
		t.Errorf("quick = %+v", quick)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/stats/quick?hours=0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("hours=0 status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/stats/library", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("library status = %d", rec.Code)
	}
	var library store.LibraryStats
	decode(t, rec, &library)
	if library.TotalSongs != 1 || library.ActiveSongs != 1 {
		t.Errorf("library = %+v", library)
	}
}

func TestLogsEndpointFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f.logBuf.Add(logbuffer.Entry{Timestamp: base, Level: "info", Component: "selector", Message: "song selected"})
	f.logBuf.Add(logbuffer.Entry{Timestamp: base.Add(time.Minute), Level: "warn", Component: "rules", Message: "rules file unavailable"})
	f.logBuf.Add(logbuffer.Entry{Timestamp: base.Add(2 * time.Minute), Level: "info", Component: "auditor", Message: "weekly audit complete"})

	rec := f.do(t, http.MethodGet, "/api/v1/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Entries []logbuffer.Entry `json:"entries"`
		Count   int               `json:"count"`
	}
	decode(t, rec, &body)
	if body.Count != 3 {
		t.Fatalf("count = %d, want 3", body.Count)
	}
	if body.Entries[0].Message != "weekly audit complete" {
		t.Errorf("first entry = %q, want newest first", body.Entries[0].Message)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/logs?level=warn", nil)
	decode(t, rec, &body)
	if body.Count != 1 || body.Entries[0].Component != "rules" {
		t.Errorf("level filter = %+v", body)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/logs?search=AUDIT&order=asc", nil)
	decode(t, rec, &body)
	if body.Count != 1 || body.Entries[0].Message != "weekly audit complete" {
		t.Errorf("search filter = %+v", body)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/logs?limit=zero", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/logs?since=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}
}
