/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auditor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

// Monday 2026-08-24 10:00 UTC keeps replayed plays inside one weekday.
var windowEnd = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

type fakeHistory struct {
	records []store.PlayRecord
	err     error
}

func (f *fakeHistory) PlaysBetween(context.Context, time.Time, time.Time) ([]store.PlayRecord, error) {
	return f.records, f.err
}

type fakeCatalog struct {
	songs []models.Song
	err   error
}

func (f *fakeCatalog) ActiveSongs(context.Context) ([]models.Song, error) {
	return f.songs, f.err
}

type fakeSink struct {
	saved []*models.AuditReport
	err   error
}

func (f *fakeSink) Save(_ context.Context, report *models.AuditReport) error {
	f.saved = append(f.saved, report)
	return f.err
}

func defaultRules(t *testing.T) *rules.Config {
	t.Helper()
	cfg, err := rules.Parse(nil)
	if err != nil {
		t.Fatalf("rules.Parse: %v", err)
	}
	return cfg
}

func catalogSong(id, artist string, category models.Category) models.Song {
	return models.Song{
		ID:              id,
		Title:           "Song " + id,
		Artist:          artist,
		Genre:           "Rock",
		Category:        category,
		Tempo:           models.TempoMedium,
		Gender:          "Male",
		DurationSeconds: 180,
		Active:          true,
	}
}

func record(song models.Song, at time.Time) store.PlayRecord {
	return store.PlayRecord{
		Play: models.PlayLog{
			ID:        song.ID + "-" + at.Format("150405"),
			SongID:    song.ID,
			PlayedAt:  at,
			Hour:      at.Hour(),
			DayOfWeek: (int(at.Weekday()) + 6) % 7,
			Completed: true,
		},
		Song: song,
	}
}

func skippedRecord(song models.Song, at time.Time) store.PlayRecord {
	rec := record(song, at)
	rec.Play.Completed = false
	rec.Play.Skipped = true
	rec.Play.SkipReason = "operator"
	return rec
}

func TestGenerateWeeklyReportZeroedOnHistoryFailure(t *testing.T) {
	aud := New(
		&fakeHistory{err: errors.New("db down")},
		&fakeCatalog{},
		nil,
		defaultRules(t),
		zerolog.Nop(),
	)

	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)
	if report == nil {
		t.Fatal("report must never be nil")
	}
	if report.Summary.TotalPlays != 0 {
		t.Errorf("TotalPlays = %d, want 0", report.Summary.TotalPlays)
	}
	if report.TopSongs == nil || report.RuleViolations == nil || report.Recommendations == nil {
		t.Error("zeroed report must have non-nil sections")
	}
	if report.CategoryBreakdown == nil || report.GenderBreakdown == nil {
		t.Error("zeroed report must have non-nil maps")
	}
	for h := range report.HourlyDistribution {
		if report.HourlyDistribution[h].Categories == nil {
			t.Fatalf("hour %d bucket has nil category map", h)
		}
	}
	if !report.StartDate.Equal(windowEnd.AddDate(0, 0, -7)) {
		t.Errorf("StartDate = %s, want 7 days before end", report.StartDate)
	}
}

func TestGenerateWeeklyReportZeroedOnCatalogFailure(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)
	aud := New(
		&fakeHistory{records: []store.PlayRecord{record(song, windowEnd.Add(-time.Hour))}},
		&fakeCatalog{err: errors.New("db down")},
		nil,
		defaultRules(t),
		zerolog.Nop(),
	)

	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)
	if report.Summary.TotalPlays != 0 {
		t.Errorf("TotalPlays = %d, want 0 on catalog failure", report.Summary.TotalPlays)
	}
}

func TestSummaryStatistics(t *testing.T) {
	a := catalogSong("a", "Artist A", models.CategoryCurrent)
	b := catalogSong("b", "Artist B", models.CategoryGold)
	library := []models.Song{a, b, catalogSong("c", "Artist C", models.CategoryGold), catalogSong("d", "Artist D", models.CategoryGold)}

	records := []store.PlayRecord{
		record(a, windowEnd.Add(-30*time.Hour)),
		record(a, windowEnd.Add(-20*time.Hour)),
		skippedRecord(b, windowEnd.Add(-10*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{songs: library}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	s := report.Summary
	if s.TotalPlays != 3 || s.UniqueSongsPlayed != 2 || s.UniqueArtistsPlayed != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.TotalSongsInLibrary != 4 {
		t.Errorf("TotalSongsInLibrary = %d, want 4", s.TotalSongsInLibrary)
	}
	if s.LibraryCoveragePercent != 50.0 {
		t.Errorf("LibraryCoveragePercent = %v, want 50.0", s.LibraryCoveragePercent)
	}
	if s.AveragePlaysPerSong != 1.5 {
		t.Errorf("AveragePlaysPerSong = %v, want 1.5", s.AveragePlaysPerSong)
	}
	if s.AveragePlaysPerDay != 0.4 {
		t.Errorf("AveragePlaysPerDay = %v, want 0.4", s.AveragePlaysPerDay)
	}
	if s.TotalAirTimeHours != 0.2 {
		t.Errorf("TotalAirTimeHours = %v, want 0.2", s.TotalAirTimeHours)
	}
	if s.CompletedPlays != 2 || s.SkippedPlays != 1 {
		t.Errorf("completed=%d skipped=%d, want 2/1", s.CompletedPlays, s.SkippedPlays)
	}
}

func TestCategoryAndShareBreakdowns(t *testing.T) {
	current := catalogSong("cur", "Artist A", models.CategoryCurrent)
	gold := catalogSong("gold", "Artist B", models.CategoryGold)
	gold.Gender = "Female"
	gold.Tempo = models.TempoSlow
	gold.Genre = "Pop"

	records := []store.PlayRecord{
		record(current, windowEnd.Add(-40*time.Hour)),
		record(current, windowEnd.Add(-30*time.Hour)),
		record(current, windowEnd.Add(-20*time.Hour)),
		record(gold, windowEnd.Add(-10*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	cur := report.CategoryBreakdown[string(models.CategoryCurrent)]
	if cur.Plays != 3 || cur.Percentage != 75.0 || cur.UniqueSongs != 1 {
		t.Errorf("Current stats = %+v", cur)
	}

	if share := report.GenderBreakdown["Female"]; share.Plays != 1 || share.Percentage != 25.0 {
		t.Errorf("Female share = %+v", share)
	}
	if share := report.TempoBreakdown[string(models.TempoMedium)]; share.Plays != 3 {
		t.Errorf("Medium tempo share = %+v", share)
	}

	if len(report.GenreBreakdown) != 2 {
		t.Fatalf("GenreBreakdown = %+v", report.GenreBreakdown)
	}
	if report.GenreBreakdown[0].Genre != "Rock" || report.GenreBreakdown[0].Plays != 3 {
		t.Errorf("top genre = %+v, want Rock with 3 plays", report.GenreBreakdown[0])
	}

	hour := windowEnd.Add(-40 * time.Hour).Hour()
	if report.HourlyDistribution[hour].Plays == 0 {
		t.Errorf("hour %d bucket empty", hour)
	}
}

func TestTopSongsRanksAndTies(t *testing.T) {
	a := catalogSong("a", "Artist A", models.CategoryGold)
	b := catalogSong("b", "Artist B", models.CategoryGold)
	c := catalogSong("c", "Artist C", models.CategoryGold)

	// a and c tie on plays; a appears first in the window so it ranks first.
	records := []store.PlayRecord{
		record(a, windowEnd.Add(-50*time.Hour)),
		record(c, windowEnd.Add(-40*time.Hour)),
		record(b, windowEnd.Add(-30*time.Hour)),
		record(b, windowEnd.Add(-20*time.Hour)),
		record(b, windowEnd.Add(-10*time.Hour)),
		record(a, windowEnd.Add(-5*time.Hour)),
		record(c, windowEnd.Add(-4*time.Hour)),
	}

	top := topSongs(records, TopListLimit)
	if len(top) != 3 {
		t.Fatalf("top songs = %d, want 3", len(top))
	}
	if top[0].SongID != "b" || top[0].Rank != 1 || top[0].Plays != 3 {
		t.Errorf("rank 1 = %+v, want b with 3 plays", top[0])
	}
	if top[1].SongID != "a" || top[2].SongID != "c" {
		t.Errorf("tie order = %s, %s; want first-seen a before c", top[1].SongID, top[2].SongID)
	}

	artists := topArtists(records, TopListLimit)
	if artists[0].Artist != "Artist B" || artists[0].UniqueSongs != 1 {
		t.Errorf("top artist = %+v", artists[0])
	}
}

func TestFindUnderplayedOnlyHighRotation(t *testing.T) {
	current := catalogSong("cur", "Artist A", models.CategoryCurrent)
	power := catalogSong("pg", "Artist B", models.CategoryPowerGold)
	gold := catalogSong("gold", "Artist C", models.CategoryGold)

	records := []store.PlayRecord{
		record(current, windowEnd.Add(-30*time.Hour)),
		record(current, windowEnd.Add(-20*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{songs: []models.Song{current, power, gold}}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	if len(report.UnderplayedSongs) != 2 {
		t.Fatalf("underplayed = %+v, want current and power gold only", report.UnderplayedSongs)
	}
	// Ascending by actual plays: the never-played Power Gold song first.
	first := report.UnderplayedSongs[0]
	if first.SongID != "pg" || first.ActualPlays != 0 || first.ExpectedPlays != ExpectedWeeklyPowerGold {
		t.Errorf("first underplayed = %+v", first)
	}
	second := report.UnderplayedSongs[1]
	if second.SongID != "cur" || second.ActualPlays != 2 || second.ExpectedPlays != ExpectedWeeklyCurrent {
		t.Errorf("second underplayed = %+v", second)
	}
}

func TestFindOverplayedAdjacentGaps(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)
	clean := catalogSong("b", "Artist B", models.CategoryGold)

	records := []store.PlayRecord{
		record(song, windowEnd.Add(-10*time.Hour)),
		record(song, windowEnd.Add(-9*time.Hour)), // 60 min gap, under 180
		record(song, windowEnd.Add(-4*time.Hour)), // 300 min gap, fine
		record(clean, windowEnd.Add(-8*time.Hour)),
		record(clean, windowEnd.Add(-2*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	if len(report.OverplayedSongs) != 1 {
		t.Fatalf("overplayed = %+v, want only the tight-gap song", report.OverplayedSongs)
	}
	over := report.OverplayedSongs[0]
	if over.SongID != "a" || over.TotalPlays != 3 || over.SeparationViolations != 1 {
		t.Errorf("overplayed = %+v", over)
	}
}

func TestReplayViolationsSeparation(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)

	// The same song twice 30 minutes apart: the second play violates both
	// song and artist separation. The first play is never judged.
	records := []store.PlayRecord{
		record(song, windowEnd.Add(-2*time.Hour)),
		record(song, windowEnd.Add(-90*time.Minute)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	songSep, artistSep := false, false
	for _, v := range report.RuleViolations {
		if v.Severity != models.SeverityCritical && v.Severity != models.SeverityError {
			t.Errorf("advisory severity %s leaked into the report", v.Severity)
		}
		switch v.RuleName {
		case "Song Separation":
			songSep = true
		case "Artist Separation":
			artistSep = true
		}
	}
	if !songSep || !artistSep {
		t.Errorf("violations = %+v, want song and artist separation", report.RuleViolations)
	}
}

func TestReplayViolationsFirstPlayClean(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)
	// Catalog says the song just played, but inside the window this is its
	// first airing, so the replay must not trust LastPlayed.
	recent := windowEnd.Add(-time.Minute)
	song.LastPlayed = &recent

	records := []store.PlayRecord{
		record(song, windowEnd.Add(-3*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	if len(report.RuleViolations) != 0 {
		t.Errorf("violations = %+v, want none for a single play", report.RuleViolations)
	}
}

func TestReplayViolationsWellSpacedHistoryClean(t *testing.T) {
	a := catalogSong("a", "Artist A", models.CategoryGold)
	b := catalogSong("b", "Artist B", models.CategoryGold)
	b.Genre = "Pop"
	c := catalogSong("c", "Artist C", models.CategoryGold)
	c.Genre = "Jazz"

	records := []store.PlayRecord{
		record(a, windowEnd.Add(-30*time.Hour)),
		record(b, windowEnd.Add(-26*time.Hour)),
		record(c, windowEnd.Add(-22*time.Hour)),
		record(a, windowEnd.Add(-18*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	if len(report.RuleViolations) != 0 {
		t.Errorf("violations = %+v, want none for well spaced history", report.RuleViolations)
	}
}

func TestRecommendationsCoverageAndSkips(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryCurrent)
	library := []models.Song{song}
	for i := 0; i < 9; i++ {
		library = append(library, catalogSong(string(rune('b'+i)), "Artist X", models.CategoryGold))
	}

	records := []store.PlayRecord{
		record(song, windowEnd.Add(-30*time.Hour)),
		skippedRecord(song, windowEnd.Add(-20*time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{songs: library}, nil, defaultRules(t), zerolog.Nop())
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	var coverage, skips, gender bool
	for _, rec := range report.Recommendations {
		if strings.HasPrefix(rec, "Library coverage is low (10.0%).") {
			coverage = true
		}
		if strings.HasPrefix(rec, "50.0% of scheduled plays were skipped.") {
			skips = true
		}
		if strings.Contains(rec, "gender balance") {
			gender = true
		}
	}
	if !coverage {
		t.Errorf("recommendations = %v, want low coverage", report.Recommendations)
	}
	if !skips {
		t.Errorf("recommendations = %v, want skip rate", report.Recommendations)
	}
	// Both plays are Male, 100% > 60.
	if !gender {
		t.Errorf("recommendations = %v, want gender balance", report.Recommendations)
	}
}

func TestRecommendationsHealthyRotationEmpty(t *testing.T) {
	report := newEmptyReport(windowEnd.AddDate(0, 0, -7), windowEnd)
	report.Summary.LibraryCoveragePercent = 80
	report.CategoryBreakdown[string(models.CategoryCurrent)] = CategoryStats{Percentage: 30}
	report.GenderBreakdown["Male"] = Share{Percentage: 55}

	aud := New(&fakeHistory{}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())
	if recs := aud.recommend(report); len(recs) != 0 {
		t.Errorf("recommendations = %v, want none", recs)
	}
}

func TestReportPersistedThroughSink(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)
	sink := &fakeSink{}

	aud := New(
		&fakeHistory{records: []store.PlayRecord{record(song, windowEnd.Add(-time.Hour))}},
		&fakeCatalog{songs: []models.Song{song}},
		sink,
		defaultRules(t),
		zerolog.Nop(),
	)
	aud.GenerateWeeklyReport(context.Background(), windowEnd)

	if len(sink.saved) != 1 {
		t.Fatalf("saved %d reports, want 1", len(sink.saved))
	}
	saved := sink.saved[0]
	if saved.ID == "" || saved.ReportType != models.ReportWeekly {
		t.Errorf("saved report = %+v", saved)
	}
	if !strings.Contains(saved.Summary, `"total_plays":1`) {
		t.Errorf("summary json = %s", saved.Summary)
	}
}

func TestSinkFailureDoesNotFailReport(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)
	sink := &fakeSink{err: errors.New("table missing")}

	aud := New(
		&fakeHistory{records: []store.PlayRecord{record(song, windowEnd.Add(-time.Hour))}},
		&fakeCatalog{},
		sink,
		defaultRules(t),
		zerolog.Nop(),
	)
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)
	if report.Summary.TotalPlays != 1 {
		t.Errorf("TotalPlays = %d, want 1 despite sink failure", report.Summary.TotalPlays)
	}
}

func TestExportWritesReportFiles(t *testing.T) {
	song := catalogSong("a", "Artist A", models.CategoryGold)
	dir := t.TempDir()

	aud := New(
		&fakeHistory{records: []store.PlayRecord{record(song, windowEnd.Add(-time.Hour))}},
		&fakeCatalog{},
		nil,
		defaultRules(t),
		zerolog.Nop(),
	)
	aud.ReportsDir = dir
	report := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	stamp := report.GeneratedAt.UTC().Format("20060102_150405")
	raw, err := os.ReadFile(filepath.Join(dir, "rotation_report_"+stamp+".json"))
	if err != nil {
		t.Fatalf("read exported json: %v", err)
	}
	if !strings.Contains(string(raw), `"total_plays": 1`) {
		t.Error("exported json missing summary")
	}
	text, err := os.ReadFile(filepath.Join(dir, "rotation_summary_"+stamp+".txt"))
	if err != nil {
		t.Fatalf("read exported summary: %v", err)
	}
	if !strings.Contains(string(text), "WEEKLY ROTATION REPORT") {
		t.Error("exported summary missing header")
	}
}

func TestRenderSummarySections(t *testing.T) {
	report := newEmptyReport(windowEnd.AddDate(0, 0, -7), windowEnd)
	report.Summary.TotalPlays = 12
	report.CategoryBreakdown["Gold"] = CategoryStats{Plays: 12, Percentage: 100, UniqueSongs: 4}
	report.TopSongs = []SongRank{{Rank: 1, Title: "T", Artist: "A", Plays: 3}}
	for i := 0; i < summaryViolationLimit+5; i++ {
		report.RuleViolations = append(report.RuleViolations, ReplayViolation{
			Timestamp: windowEnd, Song: "T", Artist: "A",
			RuleName: "Song Separation", Severity: models.SeverityCritical, Message: "too soon",
		})
	}

	out := RenderSummary(report)
	for _, want := range []string{
		"WEEKLY ROTATION REPORT",
		"SUMMARY",
		"CATEGORY BREAKDOWN",
		"TOP 10 SONGS",
		"RECOMMENDATIONS",
		"No recommendations. Rotation looks healthy.",
		"RULE VIOLATIONS: 15",
		"... and 5 more",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestQuickStats(t *testing.T) {
	a := catalogSong("a", "Artist A", models.CategoryCurrent)
	b := catalogSong("b", "Artist B", models.CategoryGold)
	records := []store.PlayRecord{
		record(a, windowEnd.Add(-3*time.Hour)),
		record(a, windowEnd.Add(-2*time.Hour)),
		record(b, windowEnd.Add(-time.Hour)),
	}

	aud := New(&fakeHistory{records: records}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop())

	stats, err := aud.QuickStats(context.Background(), 0)
	if err != nil {
		t.Fatalf("QuickStats: %v", err)
	}
	if stats.PeriodHours != 24 {
		t.Errorf("PeriodHours = %d, want default 24", stats.PeriodHours)
	}
	if stats.TotalPlays != 3 || stats.UniqueSongs != 2 || stats.UniqueArtists != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Categories[string(models.CategoryCurrent)] != 2 {
		t.Errorf("categories = %+v", stats.Categories)
	}

	uncategorized := catalogSong("u", "Artist U", "")
	stats, err = New(&fakeHistory{records: []store.PlayRecord{record(uncategorized, windowEnd)}}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop()).QuickStats(context.Background(), 0)
	if err != nil {
		t.Fatalf("QuickStats: %v", err)
	}
	if stats.Categories["Unknown"] != 1 {
		t.Errorf("uncategorized play counted as %+v, want Unknown: 1", stats.Categories)
	}

	if _, err := New(&fakeHistory{err: errors.New("down")}, &fakeCatalog{}, nil, defaultRules(t), zerolog.Nop()).QuickStats(context.Background(), 6); err == nil {
		t.Error("QuickStats must surface store errors")
	}
}

func TestGenerateWeeklyReportIdempotent(t *testing.T) {
	a := catalogSong("a", "Artist A", models.CategoryCurrent)
	b := catalogSong("b", "Artist B", models.CategoryPowerGold)
	c := catalogSong("c", "Artist C", models.CategoryGold)
	records := []store.PlayRecord{
		record(a, windowEnd.Add(-30*time.Hour)),
		record(a, windowEnd.Add(-6*time.Hour)),
		record(b, windowEnd.Add(-5*time.Hour)),
		skippedRecord(c, windowEnd.Add(-4*time.Hour)),
		record(a, windowEnd.Add(-3*time.Hour)),
	}
	history := &fakeHistory{records: records}
	catalog := &fakeCatalog{songs: []models.Song{a, b, c}}

	aud := New(history, catalog, nil, defaultRules(t), zerolog.Nop())
	first := aud.GenerateWeeklyReport(context.Background(), windowEnd)
	second := aud.GenerateWeeklyReport(context.Background(), windowEnd)

	// GeneratedAt is the only field allowed to differ between runs.
	second.GeneratedAt = first.GeneratedAt

	rawFirst, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first report: %v", err)
	}
	rawSecond, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second report: %v", err)
	}
	if !bytes.Equal(rawFirst, rawSecond) {
		t.Errorf("reports differ across identical runs:\nfirst:  %s\nsecond: %s", rawFirst, rawSecond)
	}
}
