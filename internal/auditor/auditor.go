/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package auditor replays play history through the rule checker and rolls it
// up into compliance reports.
package auditor

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

// Report caps keep the persisted document bounded.
const (
	TopListLimit       = 20
	UnderplayedLimit   = 20
	OverplayedLimit    = 20
	ViolationListLimit = 100
	ReplayWindow       = 10
)

// Expected weekly plays for high-rotation categories under the default
// policy.
const (
	ExpectedWeeklyCurrent   = 7
	ExpectedWeeklyPowerGold = 3
)

// History is the slice of the play history store the auditor reads.
type History interface {
	PlaysBetween(ctx context.Context, start, end time.Time) ([]store.PlayRecord, error)
}

// Catalog is the slice of the catalog store the auditor reads.
type Catalog interface {
	ActiveSongs(ctx context.Context) ([]models.Song, error)
}

// ReportSink persists generated reports.
type ReportSink interface {
	Save(ctx context.Context, report *models.AuditReport) error
}

// Auditor generates rotation compliance reports.
type Auditor struct {
	history History
	catalog Catalog
	sink    ReportSink
	config  *rules.Config
	logger  zerolog.Logger

	// ReportsDir, when set, receives JSON and plain-text exports of each
	// generated report.
	ReportsDir string
}

// New creates an auditor. sink may be nil for dry runs.
func New(history History, catalog Catalog, sink ReportSink, config *rules.Config, logger zerolog.Logger) *Auditor {
	return &Auditor{
		history: history,
		catalog: catalog,
		sink:    sink,
		config:  config,
		logger:  logger.With().Str("component", "auditor").Logger(),
	}
}

// Summary is the report's headline statistics block.
type Summary struct {
	TotalPlays             int     `json:"total_plays"`
	UniqueSongsPlayed      int     `json:"unique_songs_played"`
	UniqueArtistsPlayed    int     `json:"unique_artists_played"`
	TotalSongsInLibrary    int     `json:"total_songs_in_library"`
	LibraryCoveragePercent float64 `json:"library_coverage_percent"`
	TotalAirTimeHours      float64 `json:"total_air_time_hours"`
	AveragePlaysPerSong    float64 `json:"average_plays_per_song"`
	AveragePlaysPerDay     float64 `json:"average_plays_per_day"`
	CompletedPlays         int     `json:"completed_plays"`
	SkippedPlays           int     `json:"skipped_plays"`
}

// CategoryStats is one category's share of the window.
type CategoryStats struct {
	Plays       int     `json:"plays"`
	Percentage  float64 `json:"percentage"`
	UniqueSongs int     `json:"unique_songs"`
}

// Share is a count plus percentage of total plays.
type Share struct {
	Plays      int     `json:"plays"`
	Percentage float64 `json:"percentage"`
}

// GenreStats is one genre's share, kept in descending play order.
type GenreStats struct {
	Genre      string  `json:"genre"`
	Plays      int     `json:"plays"`
	Percentage float64 `json:"percentage"`
}

// HourBucket is one hour-of-day slot with category sub-counts.
type HourBucket struct {
	Plays      int            `json:"plays"`
	Categories map[string]int `json:"categories"`
}

// SongRank is a top-songs entry.
type SongRank struct {
	Rank     int             `json:"rank"`
	Title    string          `json:"title"`
	Artist   string          `json:"artist"`
	Category models.Category `json:"category"`
	Plays    int             `json:"plays"`
	SongID   string          `json:"song_id"`
}

// ArtistRank is a top-artists entry.
type ArtistRank struct {
	Rank        int    `json:"rank"`
	Artist      string `json:"artist"`
	Plays       int    `json:"plays"`
	UniqueSongs int    `json:"unique_songs"`
}

// UnderplayedSong fell short of its expected weekly plays.
type UnderplayedSong struct {
	Title         string          `json:"title"`
	Artist        string          `json:"artist"`
	Category      models.Category `json:"category"`
	ActualPlays   int             `json:"actual_plays"`
	ExpectedPlays int             `json:"expected_plays"`
	SongID        string          `json:"song_id"`
}

// OverplayedSong aired with adjacent plays closer than the configured
// separation.
type OverplayedSong struct {
	Title                string          `json:"title"`
	Artist               string          `json:"artist"`
	Category             models.Category `json:"category"`
	TotalPlays           int             `json:"total_plays"`
	SeparationViolations int             `json:"separation_violations"`
	SongID               string          `json:"song_id"`
}

// ReplayViolation is a rule violation found by replaying history.
type ReplayViolation struct {
	Timestamp time.Time       `json:"timestamp"`
	Song      string          `json:"song"`
	Artist    string          `json:"artist"`
	RuleName  string          `json:"rule_name"`
	RuleType  models.RuleType `json:"rule_type"`
	Severity  models.Severity `json:"severity"`
	Message   string          `json:"message"`
}

// Report is a full rotation compliance report for one window.
type Report struct {
	ReportType  models.ReportType `json:"report_type"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	GeneratedAt time.Time         `json:"generated_at"`

	Summary            Summary                  `json:"summary"`
	CategoryBreakdown  map[string]CategoryStats `json:"category_breakdown"`
	GenderBreakdown    map[string]Share         `json:"gender_breakdown"`
	TempoBreakdown     map[string]Share         `json:"tempo_breakdown"`
	GenreBreakdown     []GenreStats             `json:"genre_breakdown"`
	HourlyDistribution [24]HourBucket           `json:"hourly_distribution"`
	TopSongs           []SongRank               `json:"top_songs"`
	TopArtists         []ArtistRank             `json:"top_artists"`
	UnderplayedSongs   []UnderplayedSong        `json:"underplayed_songs"`
	OverplayedSongs    []OverplayedSong         `json:"overplayed_songs"`
	RuleViolations     []ReplayViolation        `json:"rule_violations"`
	Recommendations    []string                 `json:"recommendations"`
}

// GenerateWeeklyReport audits the trailing 7 days ending at end (zero means
// now). Store failures degrade to a zeroed report; auditing is best-effort
// reporting, not a critical path.
func (a *Auditor) GenerateWeeklyReport(ctx context.Context, end time.Time) *Report {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := end.AddDate(0, 0, -7)

	report := newEmptyReport(start, end)

	records, err := a.history.PlaysBetween(ctx, start, end)
	if err != nil {
		a.logger.Warn().Err(err).Msg("play history unavailable, returning zeroed report")
		return report
	}
	activeSongs, err := a.catalog.ActiveSongs(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("catalog unavailable, returning zeroed report")
		return report
	}

	report.Summary = a.summarize(records, activeSongs)
	report.CategoryBreakdown = analyzeCategories(records)
	report.GenderBreakdown = analyzeGender(records)
	report.TempoBreakdown = analyzeTempo(records)
	report.GenreBreakdown = analyzeGenre(records)
	report.HourlyDistribution = analyzeHourly(records)
	report.TopSongs = topSongs(records, TopListLimit)
	report.TopArtists = topArtists(records, TopListLimit)
	report.UnderplayedSongs = a.findUnderplayed(records, activeSongs)
	report.OverplayedSongs = a.findOverplayed(records)
	report.RuleViolations = a.replayViolations(records)
	report.Recommendations = a.recommend(report)

	if a.sink != nil {
		if err := a.sink.Save(ctx, report.toModel()); err != nil {
			a.logger.Error().Err(err).Msg("failed to persist audit report")
		}
	}
	if a.ReportsDir != "" {
		if err := a.Export(report); err != nil {
			a.logger.Error().Err(err).Msg("failed to export audit report")
		}
	}

	a.logger.Info().
		Int("total_plays", report.Summary.TotalPlays).
		Int("violations", len(report.RuleViolations)).
		Int("recommendations", len(report.Recommendations)).
		Msg("weekly rotation report generated")
	return report
}

func newEmptyReport(start, end time.Time) *Report {
	report := &Report{
		ReportType:        models.ReportWeekly,
		StartDate:         start,
		EndDate:           end,
		GeneratedAt:       time.Now().UTC(),
		CategoryBreakdown: map[string]CategoryStats{},
		GenderBreakdown:   map[string]Share{},
		TempoBreakdown:    map[string]Share{},
		GenreBreakdown:    []GenreStats{},
		TopSongs:          []SongRank{},
		TopArtists:        []ArtistRank{},
		UnderplayedSongs:  []UnderplayedSong{},
		OverplayedSongs:   []OverplayedSong{},
		RuleViolations:    []ReplayViolation{},
		Recommendations:   []string{},
	}
	for h := range report.HourlyDistribution {
		report.HourlyDistribution[h].Categories = map[string]int{}
	}
	return report
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (a *Auditor) summarize(records []store.PlayRecord, activeSongs []models.Song) Summary {
	uniqueSongs := make(map[string]bool)
	uniqueArtists := make(map[string]bool)
	totalDuration := 0.0
	completed, skipped := 0, 0

	for _, rec := range records {
		uniqueSongs[rec.Play.SongID] = true
		if rec.Song.Artist != "" {
			uniqueArtists[rec.Song.Artist] = true
		}
		totalDuration += rec.Song.DurationSeconds
		if rec.Play.Completed {
			completed++
		}
		if rec.Play.Skipped {
			skipped++
		}
	}

	summary := Summary{
		TotalPlays:          len(records),
		UniqueSongsPlayed:   len(uniqueSongs),
		UniqueArtistsPlayed: len(uniqueArtists),
		TotalSongsInLibrary: len(activeSongs),
		TotalAirTimeHours:   round1(totalDuration / 3600),
		AveragePlaysPerDay:  round1(float64(len(records)) / 7),
		CompletedPlays:      completed,
		SkippedPlays:        skipped,
	}
	if len(activeSongs) > 0 {
		summary.LibraryCoveragePercent = round1(float64(len(uniqueSongs)) / float64(len(activeSongs)) * 100)
	}
	if len(uniqueSongs) > 0 {
		summary.AveragePlaysPerSong = round1(float64(len(records)) / float64(len(uniqueSongs)))
	}
	return summary
}

func analyzeCategories(records []store.PlayRecord) map[string]CategoryStats {
	counts := make(map[string]int)
	songs := make(map[string]map[string]bool)
	for _, rec := range records {
		if rec.Song.Category == "" {
			continue
		}
		cat := string(rec.Song.Category)
		counts[cat]++
		if songs[cat] == nil {
			songs[cat] = make(map[string]bool)
		}
		songs[cat][rec.Play.SongID] = true
	}

	total := len(records)
	if total == 0 {
		total = 1
	}
	result := make(map[string]CategoryStats, len(counts))
	for cat, count := range counts {
		result[cat] = CategoryStats{
			Plays:       count,
			Percentage:  round1(float64(count) / float64(total) * 100),
			UniqueSongs: len(songs[cat]),
		}
	}
	return result
}

func analyzeGender(records []store.PlayRecord) map[string]Share {
	return analyzeShare(records, func(song models.Song) string {
		if song.Gender == "" {
			return "Unknown"
		}
		return song.Gender
	})
}

func analyzeTempo(records []store.PlayRecord) map[string]Share {
	return analyzeShare(records, func(song models.Song) string {
		if song.Tempo == "" {
			return "Unknown"
		}
		return string(song.Tempo)
	})
}

func analyzeShare(records []store.PlayRecord, key func(models.Song) string) map[string]Share {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[key(rec.Song)]++
	}

	total := len(records)
	if total == 0 {
		total = 1
	}
	result := make(map[string]Share, len(counts))
	for k, count := range counts {
		result[k] = Share{
			Plays:      count,
			Percentage: round1(float64(count) / float64(total) * 100),
		}
	}
	return result
}

func analyzeGenre(records []store.PlayRecord) []GenreStats {
	counts := make(map[string]int)
	var order []string
	for _, rec := range records {
		genre := rec.Song.Genre
		if genre == "" {
			genre = "Unknown"
		}
		if _, seen := counts[genre]; !seen {
			order = append(order, genre)
		}
		counts[genre]++
	}

	total := len(records)
	if total == 0 {
		total = 1
	}
	result := make([]GenreStats, 0, len(order))
	for _, genre := range order {
		result = append(result, GenreStats{
			Genre:      genre,
			Plays:      counts[genre],
			Percentage: round1(float64(counts[genre]) / float64(total) * 100),
		})
	}
	// Descending by plays, first-seen order breaking ties.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Plays > result[j].Plays
	})
	return result
}

func analyzeHourly(records []store.PlayRecord) [24]HourBucket {
	var hourly [24]HourBucket
	for h := range hourly {
		hourly[h].Categories = map[string]int{}
	}
	for _, rec := range records {
		hour := rec.Play.Hour
		if hour < 0 || hour > 23 {
			hour = rec.Play.PlayedAt.Hour()
		}
		hourly[hour].Plays++
		if rec.Song.Category != "" {
			hourly[hour].Categories[string(rec.Song.Category)]++
		}
	}
	return hourly
}

func topSongs(records []store.PlayRecord, limit int) []SongRank {
	counts := make(map[string]int)
	var order []string
	songs := make(map[string]models.Song)
	for _, rec := range records {
		if _, seen := counts[rec.Play.SongID]; !seen {
			order = append(order, rec.Play.SongID)
			songs[rec.Play.SongID] = rec.Song
		}
		counts[rec.Play.SongID]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}

	result := make([]SongRank, 0, len(order))
	for i, id := range order {
		song := songs[id]
		result = append(result, SongRank{
			Rank:     i + 1,
			Title:    song.Title,
			Artist:   song.Artist,
			Category: song.Category,
			Plays:    counts[id],
			SongID:   id,
		})
	}
	return result
}

func topArtists(records []store.PlayRecord, limit int) []ArtistRank {
	counts := make(map[string]int)
	var order []string
	songsByArtist := make(map[string]map[string]bool)
	for _, rec := range records {
		artist := rec.Song.Artist
		if artist == "" {
			continue
		}
		if _, seen := counts[artist]; !seen {
			order = append(order, artist)
			songsByArtist[artist] = make(map[string]bool)
		}
		counts[artist]++
		songsByArtist[artist][rec.Play.SongID] = true
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}

	result := make([]ArtistRank, 0, len(order))
	for i, artist := range order {
		result = append(result, ArtistRank{
			Rank:        i + 1,
			Artist:      artist,
			Plays:       counts[artist],
			UniqueSongs: len(songsByArtist[artist]),
		})
	}
	return result
}

func (a *Auditor) findUnderplayed(records []store.PlayRecord, activeSongs []models.Song) []UnderplayedSong {
	playCounts := make(map[string]int)
	for _, rec := range records {
		playCounts[rec.Play.SongID]++
	}

	var underplayed []UnderplayedSong
	for _, song := range activeSongs {
		var expected int
		switch song.Category {
		case models.CategoryCurrent:
			expected = ExpectedWeeklyCurrent
		case models.CategoryPowerGold:
			expected = ExpectedWeeklyPowerGold
		default:
			continue
		}

		actual := playCounts[song.ID]
		if actual < expected {
			underplayed = append(underplayed, UnderplayedSong{
				Title:         song.Title,
				Artist:        song.Artist,
				Category:      song.Category,
				ActualPlays:   actual,
				ExpectedPlays: expected,
				SongID:        song.ID,
			})
		}
	}

	sort.SliceStable(underplayed, func(i, j int) bool {
		return underplayed[i].ActualPlays < underplayed[j].ActualPlays
	})
	if len(underplayed) > UnderplayedLimit {
		underplayed = underplayed[:UnderplayedLimit]
	}
	return underplayed
}

// findOverplayed flags songs whose adjacent aired plays sit closer than the
// configured song separation. Only plays that actually aired count; songs
// never selected are the underplayed list's concern.
func (a *Auditor) findOverplayed(records []store.PlayRecord) []OverplayedSong {
	bySong := make(map[string][]store.PlayRecord)
	var order []string
	for _, rec := range records {
		if _, seen := bySong[rec.Play.SongID]; !seen {
			order = append(order, rec.Play.SongID)
		}
		bySong[rec.Play.SongID] = append(bySong[rec.Play.SongID], rec)
	}

	minSeparation := float64(a.config.SongSeparation())

	var overplayed []OverplayedSong
	for _, id := range order {
		plays := bySong[id]
		sort.SliceStable(plays, func(i, j int) bool {
			return plays[i].Play.PlayedAt.Before(plays[j].Play.PlayedAt)
		})

		violations := 0
		for i := 1; i < len(plays); i++ {
			gap := plays[i].Play.PlayedAt.Sub(plays[i-1].Play.PlayedAt).Minutes()
			if gap < minSeparation {
				violations++
			}
		}
		if violations > 0 {
			song := plays[0].Song
			overplayed = append(overplayed, OverplayedSong{
				Title:                song.Title,
				Artist:               song.Artist,
				Category:             song.Category,
				TotalPlays:           len(plays),
				SeparationViolations: violations,
				SongID:               id,
			})
		}
	}

	sort.SliceStable(overplayed, func(i, j int) bool {
		return overplayed[i].SeparationViolations > overplayed[j].SeparationViolations
	})
	if len(overplayed) > OverplayedLimit {
		overplayed = overplayed[:OverplayedLimit]
	}
	return overplayed
}

// replayViolations re-runs the constraint checker over the window in
// chronological order, each play judged against the rolling window of the
// plays before it. Only error and critical findings are kept.
func (a *Auditor) replayViolations(records []store.PlayRecord) []ReplayViolation {
	var violations []ReplayViolation

	lastPlayed := make(map[string]time.Time)
	genreCounts := make(map[string]int)
	var currentHourBucket time.Time

	for i, rec := range records {
		bucket := rec.Play.PlayedAt.Truncate(time.Hour)
		if !bucket.Equal(currentHourBucket) {
			genreCounts = make(map[string]int)
			currentHourBucket = bucket
		}

		if i > 0 {
			violations = append(violations, a.evaluateHistorical(rec, records[maxInt(0, i-ReplayWindow):i], lastPlayed, genreCounts)...)
		}

		lastPlayed[rec.Play.SongID] = rec.Play.PlayedAt
		if rec.Song.Genre != "" {
			genreCounts[rec.Song.Genre]++
		}
	}

	if len(violations) > ViolationListLimit {
		violations = violations[:ViolationListLimit]
	}
	return violations
}

func (a *Auditor) evaluateHistorical(rec store.PlayRecord, window []store.PlayRecord, lastPlayed map[string]time.Time, genreCounts map[string]int) []ReplayViolation {
	ruleCtx := rules.Context{
		Hour:              rec.Play.Hour,
		DayOfWeek:         rec.Play.DayOfWeek,
		HourlyGenreCounts: genreCounts,
		Now:               rec.Play.PlayedAt,
	}
	for i := len(window) - 1; i >= 0; i-- {
		ruleCtx.RecentPlays = append(ruleCtx.RecentPlays, rules.RecentPlay{
			SongID:   window[i].Play.SongID,
			Artist:   window[i].Song.Artist,
			PlayedAt: window[i].Play.PlayedAt,
		})
	}
	for _, prev := range window {
		ruleCtx.RecentSongs = append(ruleCtx.RecentSongs, prev.Song)
	}

	// Judge the play as it looked before it aired: its last play is the
	// previous occurrence inside the window, not today's catalog value.
	song := rec.Song
	song.LastPlayed = nil
	if at, ok := lastPlayed[rec.Play.SongID]; ok {
		prior := at
		song.LastPlayed = &prior
	}

	decision := a.config.Evaluate(song, ruleCtx)

	var found []ReplayViolation
	for _, v := range decision.Violations {
		if v.Severity != models.SeverityError && v.Severity != models.SeverityCritical {
			continue
		}
		found = append(found, ReplayViolation{
			Timestamp: rec.Play.PlayedAt,
			Song:      rec.Song.Title,
			Artist:    rec.Song.Artist,
			RuleName:  v.RuleName,
			RuleType:  v.RuleType,
			Severity:  v.Severity,
			Message:   v.Message,
		})
	}
	return found
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
