/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auditor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/friendsincode/muninn_rotation/internal/models"
)

func (a *Auditor) recommend(report *Report) []string {
	recs := []string{}
	summary := report.Summary

	if summary.LibraryCoveragePercent < 50 {
		recs = append(recs, fmt.Sprintf(
			"Library coverage is low (%.1f%%). Consider increasing rotation variety.",
			summary.LibraryCoveragePercent))
	}
	if len(report.UnderplayedSongs) > 10 {
		recs = append(recs, fmt.Sprintf(
			"%d songs are underplayed. Review rotation weights or song availability.",
			len(report.UnderplayedSongs)))
	}

	currentPct := report.CategoryBreakdown[string(models.CategoryCurrent)].Percentage
	if currentPct < 25 {
		recs = append(recs, fmt.Sprintf(
			"Current music is only %.1f%% of rotation. Consider increasing current music plays.",
			currentPct))
	} else if currentPct > 50 {
		recs = append(recs, fmt.Sprintf(
			"Current music is %.1f%% of rotation. Consider adding more variety from other categories.",
			currentPct))
	}

	genders := make([]string, 0, len(report.GenderBreakdown))
	for gender := range report.GenderBreakdown {
		genders = append(genders, gender)
	}
	sort.Strings(genders)
	for _, gender := range genders {
		if share := report.GenderBreakdown[gender]; share.Percentage > 60 {
			recs = append(recs, fmt.Sprintf(
				"%s artists are %.1f%% of rotation. Consider improving gender balance.",
				gender, share.Percentage))
		}
	}

	if len(report.RuleViolations) > 20 {
		recs = append(recs, fmt.Sprintf(
			"Found %d rule violations this week. Review scheduling rules and enforcement.",
			len(report.RuleViolations)))
	}

	if summary.TotalPlays > 0 {
		skipRate := float64(summary.SkippedPlays) / float64(summary.TotalPlays) * 100
		if skipRate > 5 {
			recs = append(recs, fmt.Sprintf(
				"%.1f%% of scheduled plays were skipped. Investigate skip reasons.",
				round1(skipRate)))
		}
	}
	return recs
}

// toModel serializes the report for the audit_reports table.
func (r *Report) toModel() *models.AuditReport {
	summary, _ := json.Marshal(r.Summary)
	data, _ := json.Marshal(map[string]any{
		"category_breakdown":  r.CategoryBreakdown,
		"gender_breakdown":    r.GenderBreakdown,
		"tempo_breakdown":     r.TempoBreakdown,
		"genre_breakdown":     r.GenreBreakdown,
		"hourly_distribution": r.HourlyDistribution,
		"top_songs":           r.TopSongs,
		"top_artists":         r.TopArtists,
		"underplayed_songs":   r.UnderplayedSongs,
		"overplayed_songs":    r.OverplayedSongs,
	})
	violations, _ := json.Marshal(r.RuleViolations)
	recommendations, _ := json.Marshal(r.Recommendations)

	return &models.AuditReport{
		ID:              uuid.NewString(),
		ReportType:      r.ReportType,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		GeneratedAt:     r.GeneratedAt,
		Summary:         string(summary),
		Data:            string(data),
		Violations:      string(violations),
		Recommendations: string(recommendations),
	}
}

// Export writes the full report as JSON plus a human-readable summary into
// ReportsDir.
func (a *Auditor) Export(report *Report) error {
	if err := os.MkdirAll(a.ReportsDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}

	stamp := report.GeneratedAt.UTC().Format("20060102_150405")

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	jsonPath := filepath.Join(a.ReportsDir, fmt.Sprintf("rotation_report_%s.json", stamp))
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return fmt.Errorf("write report json: %w", err)
	}

	textPath := filepath.Join(a.ReportsDir, fmt.Sprintf("rotation_summary_%s.txt", stamp))
	if err := os.WriteFile(textPath, []byte(RenderSummary(report)), 0o644); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}

	a.logger.Info().Str("json", jsonPath).Str("summary", textPath).Msg("report exported")
	return nil
}

const summaryViolationLimit = 10

// RenderSummary produces the plain-text digest handed to program directors.
// Sections always render in the same order so week-over-week diffs line up.
func RenderSummary(report *Report) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 40)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "WEEKLY ROTATION REPORT\n")
	fmt.Fprintf(&b, "%s to %s\n",
		report.StartDate.UTC().Format("2006-01-02"),
		report.EndDate.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Generated: %s\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "%s\n\n", rule)

	s := report.Summary
	fmt.Fprintf(&b, "SUMMARY\n%s\n", thin)
	fmt.Fprintf(&b, "Total Plays:        %d\n", s.TotalPlays)
	fmt.Fprintf(&b, "Unique Songs:       %d\n", s.UniqueSongsPlayed)
	fmt.Fprintf(&b, "Unique Artists:     %d\n", s.UniqueArtistsPlayed)
	fmt.Fprintf(&b, "Library Coverage:   %.1f%%\n", s.LibraryCoveragePercent)
	fmt.Fprintf(&b, "Total Air Time:     %.1f hours\n", s.TotalAirTimeHours)
	fmt.Fprintf(&b, "Avg Plays/Day:      %.1f\n", s.AveragePlaysPerDay)
	fmt.Fprintf(&b, "Skipped Plays:      %d\n\n", s.SkippedPlays)

	fmt.Fprintf(&b, "CATEGORY BREAKDOWN\n%s\n", thin)
	for _, cat := range categoryRenderOrder(report.CategoryBreakdown) {
		stats := report.CategoryBreakdown[cat]
		fmt.Fprintf(&b, "%-12s %4d plays (%.1f%%), %d unique songs\n",
			cat+":", stats.Plays, stats.Percentage, stats.UniqueSongs)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "TOP 10 SONGS\n%s\n", thin)
	for _, song := range report.TopSongs {
		if song.Rank > 10 {
			break
		}
		fmt.Fprintf(&b, "%2d. %s - %s (%d plays)\n", song.Rank, song.Title, song.Artist, song.Plays)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "RECOMMENDATIONS\n%s\n", thin)
	if len(report.Recommendations) == 0 {
		b.WriteString("No recommendations. Rotation looks healthy.\n")
	}
	for _, rec := range report.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "RULE VIOLATIONS: %d\n%s\n", len(report.RuleViolations), thin)
	for i, v := range report.RuleViolations {
		if i >= summaryViolationLimit {
			fmt.Fprintf(&b, "... and %d more\n", len(report.RuleViolations)-summaryViolationLimit)
			break
		}
		fmt.Fprintf(&b, "[%s] %s  %s - %s: %s\n",
			v.Severity, v.Timestamp.UTC().Format("2006-01-02 15:04"), v.Song, v.Artist, v.Message)
	}

	return b.String()
}

// categoryRenderOrder walks the known tiers in broadcast priority order, then
// any stray categories alphabetically.
func categoryRenderOrder(breakdown map[string]CategoryStats) []string {
	var order []string
	known := make(map[string]bool)
	for _, cat := range models.Categories {
		known[string(cat)] = true
		if _, ok := breakdown[string(cat)]; ok {
			order = append(order, string(cat))
		}
	}
	var extras []string
	for cat := range breakdown {
		if !known[cat] {
			extras = append(extras, cat)
		}
	}
	sort.Strings(extras)
	return append(order, extras...)
}
