/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"time"

	"github.com/friendsincode/muninn_rotation/internal/models"
)

// RecentPlay is the slice of play history the checker needs: who played and
// when.
type RecentPlay struct {
	SongID   string
	Artist   string
	PlayedAt time.Time
}

// Context carries the rolling state a candidate is evaluated against. The
// caller materializes it from the history store; the checker itself never
// touches storage.
type Context struct {
	// RecentPlays holds the most recent plays first.
	RecentPlays []RecentPlay
	// RecentSongs holds recently played songs in chronological order,
	// oldest first.
	RecentSongs []models.Song
	// Hour and DayOfWeek describe the slot being scheduled. DayOfWeek is
	// 0=Monday through 6=Sunday.
	Hour      int
	DayOfWeek int
	// HourlyGenreCounts tracks plays per genre within the current clock
	// hour.
	HourlyGenreCounts map[string]int
	// Now anchors all elapsed-time math so evaluations are reproducible.
	Now time.Time
}

// ContextAt builds an empty context for a wall-clock moment.
func ContextAt(now time.Time) Context {
	weekday := (int(now.Weekday()) + 6) % 7 // time.Weekday is 0=Sunday
	return Context{
		Hour:              now.Hour(),
		DayOfWeek:         weekday,
		HourlyGenreCounts: map[string]int{},
		Now:               now,
	}
}
