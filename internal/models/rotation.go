/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Category is an editorial rotation tier driving base play frequency.
type Category string

const (
	CategoryCurrent   Category = "Current"
	CategoryRecurrent Category = "Recurrent"
	CategoryPowerGold Category = "Power Gold"
	CategoryGold      Category = "Gold"
	CategoryDeepCut   Category = "Deep Cut"
)

// Categories lists all rotation tiers in broadcast priority order.
var Categories = []Category{
	CategoryCurrent,
	CategoryRecurrent,
	CategoryPowerGold,
	CategoryGold,
	CategoryDeepCut,
}

// TempoClass buckets songs by pacing.
type TempoClass string

const (
	TempoSlow   TempoClass = "Slow"
	TempoMedium TempoClass = "Medium"
	TempoFast   TempoClass = "Fast"
)

// PlaySource tags how a play entered the log.
type PlaySource string

const (
	SourceRotation PlaySource = "rotation"
	SourceManual   PlaySource = "manual"
	SourceRequest  PlaySource = "request"
)

// Song is a catalog entry with rotation metadata.
type Song struct {
	ID     string `gorm:"type:uuid;primaryKey"`
	Title  string `gorm:"index"`
	Artist string `gorm:"index"`
	Genre  string `gorm:"index"`

	Category Category   `gorm:"type:varchar(32);index:idx_songs_rotation"`
	Mood     string     `gorm:"type:varchar(50)"`
	Tempo    TempoClass `gorm:"type:varchar(16)"`
	TempoBPM float64
	Gender   string `gorm:"type:varchar(20)"`
	Energy   string `gorm:"type:varchar(20)"`
	Explicit bool

	DurationSeconds float64
	RotationWeight  float64
	// MinRestMinutes overrides the global song separation when > 0.
	MinRestMinutes int

	LastPlayed       *time.Time `gorm:"index:idx_songs_rotation"`
	PlayCount        int
	TotalPlaySeconds float64
	Active           bool `gorm:"index:idx_songs_rotation"`

	DateAdded time.Time
	UpdatedAt time.Time
}

// RestMinutes returns the effective rest requirement, falling back to the
// supplied global minimum when the song carries no override.
func (s Song) RestMinutes(global int) int {
	if s.MinRestMinutes > 0 {
		return s.MinRestMinutes
	}
	return global
}

// PlayLog is an immutable record of one broadcast event. Rows are appended by
// the history store and never updated afterwards.
type PlayLog struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	SongID      string `gorm:"type:uuid;index:idx_playlog_song_time"`
	PlayedAt    time.Time `gorm:"index:idx_playlog_song_time;index:idx_playlog_time"`
	ScheduledAt *time.Time
	Source      PlaySource `gorm:"type:varchar(32)"`
	Daypart     string     `gorm:"type:varchar(32)"`
	Hour        int        `gorm:"index:idx_playlog_time"`
	DayOfWeek   int
	DurationPlayed float64
	Completed      bool
	Skipped        bool
	SkipReason     string
}

// DaypartForHour maps an hour of day onto the station's named dayparts.
func DaypartForHour(hour int) string {
	switch {
	case hour >= 6 && hour < 10:
		return "Morning Drive"
	case hour >= 10 && hour < 15:
		return "Midday"
	case hour >= 15 && hour < 19:
		return "Afternoon Drive"
	case hour >= 19 && hour < 24:
		return "Evening"
	default:
		return "Overnight"
	}
}
