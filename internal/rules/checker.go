/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"fmt"
	"strings"

	"github.com/friendsincode/muninn_rotation/internal/models"
)

// Decision is the outcome of evaluating one candidate: the full violation
// list plus whether the song may legally air.
type Decision struct {
	MayPlay    bool
	Violations []models.Violation
}

// Evaluate runs every rule check against the candidate and concatenates the
// results. Checks are independent and never short-circuited so the auditor
// can replay history through the identical logic. A song may play exactly
// when no violation is critical.
func (c *Config) Evaluate(song models.Song, ctx Context) Decision {
	var violations []models.Violation
	violations = append(violations, c.CheckSongSeparation(song, ctx)...)
	violations = append(violations, c.CheckArtistSeparation(song, ctx)...)
	violations = append(violations, c.CheckHourlyRules(song, ctx)...)
	violations = append(violations, c.CheckTempoFlow(song, ctx)...)
	violations = append(violations, c.CheckGenderBalance(song, ctx)...)
	violations = append(violations, c.CheckGenreRules(song, ctx)...)
	violations = append(violations, c.CheckDayparting(song, ctx)...)

	mayPlay := true
	for _, v := range violations {
		if v.Blocking() {
			mayPlay = false
			break
		}
	}
	return Decision{MayPlay: mayPlay, Violations: violations}
}

func (c *Config) violation(ruleName string, ruleType models.RuleType, severity models.Severity, message string, song models.Song, ctx Context) models.Violation {
	return models.Violation{
		RuleName:  ruleName,
		RuleType:  ruleType,
		Severity:  severity,
		Message:   message,
		SongID:    song.ID,
		SongTitle: song.Title,
		Timestamp: ctx.Now,
	}
}

// CheckSongSeparation verifies the candidate has rested at least its
// effective minimum since its last play.
func (c *Config) CheckSongSeparation(song models.Song, ctx Context) []models.Violation {
	if song.LastPlayed == nil {
		return nil
	}
	minSeparation := song.RestMinutes(c.SongSeparation())
	minutesSince := ctx.Now.Sub(*song.LastPlayed).Minutes()
	if minutesSince >= float64(minSeparation) {
		return nil
	}
	return []models.Violation{c.violation(
		"Song Separation", models.RuleTypeSeparation, models.SeverityCritical,
		fmt.Sprintf("Song played %d minutes ago (min: %d)", int(minutesSince), minSeparation),
		song, ctx,
	)}
}

// CheckArtistSeparation scans the recent-plays window for the candidate's
// artist. The most recent match decides; older plays of the same artist are
// never closer.
func (c *Config) CheckArtistSeparation(song models.Song, ctx Context) []models.Violation {
	minSeparation := c.ArtistSeparation()

	window := ctx.RecentPlays
	if len(window) > ArtistScanWindow {
		window = window[:ArtistScanWindow]
	}

	for _, play := range window {
		if !strings.EqualFold(play.Artist, song.Artist) {
			continue
		}
		minutesSince := ctx.Now.Sub(play.PlayedAt).Minutes()
		if minutesSince < float64(minSeparation) {
			return []models.Violation{c.violation(
				"Artist Separation", models.RuleTypeSeparation, models.SeverityCritical,
				fmt.Sprintf("Artist '%s' played %d min ago (min: %d)", song.Artist, int(minutesSince), minSeparation),
				song, ctx,
			)}
		}
		return nil
	}
	return nil
}

// CheckHourlyRules flags categories outside the current hour's rule set and
// moods the rule set says to avoid.
func (c *Config) CheckHourlyRules(song models.Song, ctx Context) []models.Violation {
	set := c.hourlySetFor(ctx.Hour)
	if set == nil {
		return nil
	}

	var violations []models.Violation

	if song.Category != "" {
		allowed := false
		for _, share := range set.Rules {
			if share.Category == song.Category {
				allowed = true
				break
			}
		}
		if !allowed {
			violations = append(violations, c.violation(
				fmt.Sprintf("Hourly Rule: %s", setName(set)), models.RuleTypeHourly, models.SeverityWarning,
				fmt.Sprintf("Category '%s' not scheduled for hour %d", song.Category, ctx.Hour),
				song, ctx,
			))
		}
	}

	for _, restriction := range set.Restrictions {
		if restriction.Action != "avoid" {
			continue
		}
		for _, mood := range restriction.Mood {
			if mood == song.Mood {
				violations = append(violations, c.violation(
					fmt.Sprintf("Hourly Restriction: %s", restrictionReason(restriction)), models.RuleTypeHourly, models.SeverityError,
					fmt.Sprintf("Mood '%s' should be avoided during this daypart", song.Mood),
					song, ctx,
				))
				break
			}
		}
	}

	return violations
}

// CheckTempoFlow counts the same-tempo run trailing the most recent song.
// Medium tempo always resets the run.
func (c *Config) CheckTempoFlow(song models.Song, ctx Context) []models.Violation {
	if len(ctx.RecentSongs) == 0 {
		return nil
	}

	recent := ctx.RecentSongs
	if len(recent) > TempoScanWindow {
		recent = recent[len(recent)-TempoScanWindow:]
	}

	consecutiveSlow, consecutiveFast := 0, 0
	for _, prev := range recent {
		switch prev.Tempo {
		case models.TempoSlow:
			consecutiveSlow++
			consecutiveFast = 0
		case models.TempoFast:
			consecutiveFast++
			consecutiveSlow = 0
		default:
			consecutiveSlow = 0
			consecutiveFast = 0
		}
	}

	var violations []models.Violation
	if song.Tempo == models.TempoSlow && consecutiveSlow >= c.MaxConsecutiveSlow() {
		violations = append(violations, c.violation(
			"Tempo Flow", models.RuleTypeTempo, models.SeverityWarning,
			fmt.Sprintf("Too many slow songs in a row (%d)", consecutiveSlow+1),
			song, ctx,
		))
	}
	if song.Tempo == models.TempoFast && consecutiveFast >= c.MaxConsecutiveFast() {
		violations = append(violations, c.violation(
			"Tempo Flow", models.RuleTypeTempo, models.SeverityWarning,
			fmt.Sprintf("Too many fast songs in a row (%d)", consecutiveFast+1),
			song, ctx,
		))
	}
	return violations
}

// CheckGenderBalance flags an unbroken run of the candidate's gender.
func (c *Config) CheckGenderBalance(song models.Song, ctx Context) []models.Violation {
	if len(ctx.RecentSongs) == 0 {
		return nil
	}

	maxConsecutive := c.MaxConsecutiveSameGender()
	recent := ctx.RecentSongs
	if len(recent) > maxConsecutive {
		recent = recent[len(recent)-maxConsecutive:]
	}

	consecutive := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Gender != song.Gender {
			break
		}
		consecutive++
	}

	if consecutive < maxConsecutive {
		return nil
	}
	return []models.Violation{c.violation(
		"Gender Balance", models.RuleTypeGender, models.SeverityWarning,
		fmt.Sprintf("Too many consecutive %s artists (%d)", song.Gender, consecutive+1),
		song, ctx,
	)}
}

// CheckGenreRules enforces same-genre spacing and per-hour genre caps.
func (c *Config) CheckGenreRules(song models.Song, ctx Context) []models.Violation {
	var violations []models.Violation

	separation := c.SameGenreSeparation()
	for distance := 1; distance <= separation && distance <= len(ctx.RecentSongs); distance++ {
		prev := ctx.RecentSongs[len(ctx.RecentSongs)-distance]
		if prev.Genre == song.Genre && song.Genre != "" {
			violations = append(violations, c.violation(
				"Genre Separation", models.RuleTypeGenre, models.SeverityWarning,
				fmt.Sprintf("Same genre '%s' played %d songs ago (min separation: %d)", song.Genre, distance, separation),
				song, ctx,
			))
			break
		}
	}

	if c.doc.GenreRules != nil {
		for _, limit := range c.doc.GenreRules.HourlyLimits {
			if limit.Genre != song.Genre {
				continue
			}
			if ctx.HourlyGenreCounts[song.Genre] >= limit.MaxPerHour {
				violations = append(violations, c.violation(
					"Genre Hourly Limit", models.RuleTypeGenre, models.SeverityError,
					fmt.Sprintf("Max %s songs reached for this hour (%d)", song.Genre, limit.MaxPerHour),
					song, ctx,
				))
			}
		}
	}

	return violations
}

// CheckDayparting applies content restrictions for rules covering the
// current hour and day.
func (c *Config) CheckDayparting(song models.Song, ctx Context) []models.Violation {
	if c.doc.SpecialRules == nil {
		return nil
	}

	var violations []models.Violation
	for _, rule := range c.doc.SpecialRules.Dayparting {
		if !hourCovered(rule.Hours, ctx.Hour) || !dayCovered(rule.Days, ctx.DayOfWeek) {
			continue
		}
		if rule.Condition.Explicit != nil && song.Explicit && !*rule.Condition.Explicit {
			violations = append(violations, c.violation(
				fmt.Sprintf("Dayparting: %s", daypartName(rule)), models.RuleTypeDayparting, models.SeverityCritical,
				"Explicit content not allowed during this daypart",
				song, ctx,
			))
		}
	}
	return violations
}

// hourCovered treats an empty hour list as all hours.
func hourCovered(hours []int, hour int) bool {
	if len(hours) == 0 {
		return true
	}
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}

// dayCovered treats an empty day list as all days.
func dayCovered(days []int, day int) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func setName(set *HourlyRuleSet) string {
	if set.Name != "" {
		return set.Name
	}
	return "Unknown"
}

func restrictionReason(r Restriction) string {
	if r.Reason != "" {
		return r.Reason
	}
	return "No reason"
}

func daypartName(rule DaypartRule) string {
	if rule.Name != "" {
		return rule.Name
	}
	return "Unknown"
}
