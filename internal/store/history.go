/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/rules"
)

// ContextWindow is how many preceding plays feed the rolling rule context.
const ContextWindow = 10

// PlayRecord pairs a play log entry with its song snapshot.
type PlayRecord struct {
	Play models.PlayLog
	Song models.Song
}

// HistoryStore appends to and reads from the play log.
type HistoryStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewHistoryStore creates a history store.
func NewHistoryStore(db *gorm.DB, logger zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: logger.With().Str("component", "history_store").Logger(),
	}
}

// AppendRequest describes one broadcast event to record.
type AppendRequest struct {
	SongID         string
	PlayedAt       time.Time // zero value means now
	ScheduledAt    *time.Time
	Source         models.PlaySource
	DurationPlayed float64
	Completed      bool
	Skipped        bool
	SkipReason     string
}

// Append writes an immutable play log entry, stamping the daypart, hour,
// and day-of-week from the play time.
func (s *HistoryStore) Append(ctx context.Context, req AppendRequest) (models.PlayLog, error) {
	playedAt := req.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now().UTC()
	}
	source := req.Source
	if source == "" {
		source = models.SourceRotation
	}

	entry := models.PlayLog{
		ID:             uuid.NewString(),
		SongID:         req.SongID,
		PlayedAt:       playedAt,
		ScheduledAt:    req.ScheduledAt,
		Source:         source,
		Daypart:        models.DaypartForHour(playedAt.Hour()),
		Hour:           playedAt.Hour(),
		DayOfWeek:      (int(playedAt.Weekday()) + 6) % 7,
		DurationPlayed: req.DurationPlayed,
		Completed:      req.Completed,
		Skipped:        req.Skipped,
		SkipReason:     req.SkipReason,
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return models.PlayLog{}, fmt.Errorf("append play log: %w", err)
	}
	return entry, nil
}

// PlaysBetween returns plays in [start, end] joined with their songs, in
// chronological order.
func (s *HistoryStore) PlaysBetween(ctx context.Context, start, end time.Time) ([]PlayRecord, error) {
	var plays []models.PlayLog
	err := s.db.WithContext(ctx).
		Where("played_at >= ? AND played_at <= ?", start, end).
		Order("played_at ASC, id ASC").
		Find(&plays).Error
	if err != nil {
		return nil, fmt.Errorf("query play range: %w", err)
	}
	return s.joinSongs(ctx, plays)
}

// Recent returns the most recent plays, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]PlayRecord, error) {
	var plays []models.PlayLog
	err := s.db.WithContext(ctx).
		Order("played_at DESC, id DESC").
		Limit(limit).
		Find(&plays).Error
	if err != nil {
		return nil, fmt.Errorf("query recent plays: %w", err)
	}
	return s.joinSongs(ctx, plays)
}

func (s *HistoryStore) joinSongs(ctx context.Context, plays []models.PlayLog) ([]PlayRecord, error) {
	if len(plays) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(plays))
	seen := make(map[string]bool, len(plays))
	for _, play := range plays {
		if !seen[play.SongID] {
			seen[play.SongID] = true
			ids = append(ids, play.SongID)
		}
	}

	var songs []models.Song
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("join songs: %w", err)
	}
	byID := make(map[string]models.Song, len(songs))
	for _, song := range songs {
		byID[song.ID] = song
	}

	records := make([]PlayRecord, 0, len(plays))
	for _, play := range plays {
		records = append(records, PlayRecord{Play: play, Song: byID[play.SongID]})
	}
	return records, nil
}

// ContextAt materializes the rolling rule context for a scheduling moment:
// the last ContextWindow plays plus genre counts for the current clock hour.
func (s *HistoryStore) ContextAt(ctx context.Context, at time.Time) (rules.Context, error) {
	ruleCtx := rules.ContextAt(at)

	records, err := s.Recent(ctx, ContextWindow)
	if err != nil {
		return ruleCtx, err
	}

	// records are newest first; RecentSongs wants chronological order.
	for _, rec := range records {
		ruleCtx.RecentPlays = append(ruleCtx.RecentPlays, rules.RecentPlay{
			SongID:   rec.Play.SongID,
			Artist:   rec.Song.Artist,
			PlayedAt: rec.Play.PlayedAt,
		})
	}
	for i := len(records) - 1; i >= 0; i-- {
		ruleCtx.RecentSongs = append(ruleCtx.RecentSongs, records[i].Song)
	}

	hourStart := time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), 0, 0, 0, at.Location())
	for _, rec := range records {
		if !rec.Play.PlayedAt.Before(hourStart) && rec.Song.Genre != "" {
			ruleCtx.HourlyGenreCounts[rec.Song.Genre]++
		}
	}
	return ruleCtx, nil
}
