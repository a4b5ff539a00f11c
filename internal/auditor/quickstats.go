/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auditor

import (
	"context"
	"fmt"
	"time"
)

// QuickStats is a lightweight rolling snapshot for dashboards.
type QuickStats struct {
	PeriodHours   int            `json:"period_hours"`
	TotalPlays    int            `json:"total_plays"`
	UniqueSongs   int            `json:"unique_songs"`
	UniqueArtists int            `json:"unique_artists"`
	Categories    map[string]int `json:"categories"`
	PlaysPerHour  float64        `json:"plays_per_hour"`
}

// QuickStats summarizes the trailing hours of play history without running a
// full audit.
func (a *Auditor) QuickStats(ctx context.Context, hours int) (QuickStats, error) {
	if hours <= 0 {
		hours = 24
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	records, err := a.history.PlaysBetween(ctx, start, end)
	if err != nil {
		return QuickStats{}, fmt.Errorf("load play history: %w", err)
	}

	songs := make(map[string]bool)
	artists := make(map[string]bool)
	categories := make(map[string]int)
	for _, rec := range records {
		songs[rec.Play.SongID] = true
		if rec.Song.Artist != "" {
			artists[rec.Song.Artist] = true
		}
		category := string(rec.Song.Category)
		if category == "" {
			category = "Unknown"
		}
		categories[category]++
	}

	return QuickStats{
		PeriodHours:   hours,
		TotalPlays:    len(records),
		UniqueSongs:   len(songs),
		UniqueArtists: len(artists),
		Categories:    categories,
		PlaysPerHour:  round1(float64(len(records)) / float64(hours)),
	}, nil
}
