/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store provides the GORM-backed catalog, play history, and report
// stores.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/selector"
)

// CatalogStore serves song records and rotation metadata.
type CatalogStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewCatalogStore creates a catalog store.
func NewCatalogStore(db *gorm.DB, logger zerolog.Logger) *CatalogStore {
	return &CatalogStore{
		db:     db,
		logger: logger.With().Str("component", "catalog_store").Logger(),
	}
}

// Eligible returns active songs in the category that satisfy their rest
// requirement and are not excluded by artist or ID. Rest is refined in
// memory because per-song overrides shift each row's cutoff.
func (s *CatalogStore) Eligible(ctx context.Context, q selector.EligibleQuery) ([]models.Song, error) {
	query := s.db.WithContext(ctx).Where("active = ?", true)
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if len(q.ExcludedArtists) > 0 {
		query = query.Where("artist NOT IN ?", q.ExcludedArtists)
	}
	if len(q.ExcludedIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludedIDs)
	}

	var songs []models.Song
	if err := query.Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("query eligible songs: %w", err)
	}

	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	eligible := songs[:0]
	for _, song := range songs {
		if song.LastPlayed == nil {
			eligible = append(eligible, song)
			continue
		}
		rest := time.Duration(song.RestMinutes(q.MinRestMinutes)) * time.Minute
		if song.LastPlayed.Before(now.Add(-rest)) {
			eligible = append(eligible, song)
		}
	}
	return eligible, nil
}

// Create inserts a song, filling in an ID and date added when unset.
func (s *CatalogStore) Create(ctx context.Context, song *models.Song) error {
	if song.ID == "" {
		song.ID = uuid.NewString()
	}
	if song.DateAdded.IsZero() {
		song.DateAdded = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(song).Error; err != nil {
		return fmt.Errorf("create song: %w", err)
	}
	return nil
}

// List returns songs, optionally filtered by category, ordered by artist and
// title.
func (s *CatalogStore) List(ctx context.Context, category models.Category) ([]models.Song, error) {
	query := s.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var songs []models.Song
	if err := query.Order("artist, title").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return songs, nil
}

// ByID fetches one song.
func (s *CatalogStore) ByID(ctx context.Context, id string) (models.Song, error) {
	var song models.Song
	if err := s.db.WithContext(ctx).First(&song, "id = ?", id).Error; err != nil {
		return models.Song{}, err
	}
	return song, nil
}

// ActiveSongs returns every schedulable song.
func (s *CatalogStore) ActiveSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("query active songs: %w", err)
	}
	return songs, nil
}

// UpdatePlayStats records a play against the song: last_played moves forward
// only, play_count and accumulated airtime only grow.
func (s *CatalogStore) UpdatePlayStats(ctx context.Context, id string, playedAt time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var song models.Song
		if err := tx.First(&song, "id = ?", id).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"play_count":         song.PlayCount + 1,
			"total_play_seconds": song.TotalPlaySeconds + song.DurationSeconds,
		}
		if song.LastPlayed == nil || song.LastPlayed.Before(playedAt) {
			updates["last_played"] = playedAt
		}
		return tx.Model(&models.Song{}).Where("id = ?", id).Updates(updates).Error
	})
}

// LibraryStats summarizes the catalog.
type LibraryStats struct {
	TotalSongs  int64                    `json:"total_songs"`
	ActiveSongs int64                    `json:"active_songs"`
	ByCategory  map[models.Category]int64 `json:"by_category"`
}

// Stats counts the library overall and per category.
func (s *CatalogStore) Stats(ctx context.Context) (LibraryStats, error) {
	stats := LibraryStats{ByCategory: make(map[models.Category]int64)}

	if err := s.db.WithContext(ctx).Model(&models.Song{}).Count(&stats.TotalSongs).Error; err != nil {
		return stats, fmt.Errorf("count songs: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Song{}).Where("active = ?", true).Count(&stats.ActiveSongs).Error; err != nil {
		return stats, fmt.Errorf("count active songs: %w", err)
	}

	rows, err := s.db.WithContext(ctx).Model(&models.Song{}).
		Select("category, COUNT(*) as n").
		Where("active = ?", true).
		Group("category").Rows()
	if err != nil {
		return stats, fmt.Errorf("count categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category models.Category
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			continue
		}
		stats.ByCategory[category] = n
	}
	return stats, nil
}
