/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

var importDryRun bool

var importSongsCmd = &cobra.Command{
	Use:   "import-songs <file>",
	Short: "Import songs into the catalog from a JSON file",
	Long: `Reads a JSON array of songs and adds them to the catalog. Entries
missing a title or artist are skipped with a warning; everything else is
created active with play statistics zeroed.

The file format matches the song objects returned by the API:

  [{"title": "...", "artist": "...", "category": "current", ...}]`,
	Args: cobra.ExactArgs(1),
	RunE: runImportSongs,
}

func init() {
	rootCmd.AddCommand(importSongsCmd)

	importSongsCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and report without writing to the database")
}

type importSong struct {
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Genre           string  `json:"genre"`
	Category        string  `json:"category"`
	Mood            string  `json:"mood"`
	Tempo           string  `json:"tempo"`
	TempoBPM        float64 `json:"tempo_bpm"`
	Gender          string  `json:"gender"`
	Energy          string  `json:"energy"`
	Explicit        bool    `json:"explicit"`
	DurationSeconds float64 `json:"duration_seconds"`
	RotationWeight  float64 `json:"rotation_weight"`
	MinRestMinutes  int     `json:"min_rest_minutes"`
}

func runImportSongs(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var entries []importSong
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	catalog := store.NewCatalogStore(database, logger)

	ctx := context.Background()
	imported, skipped := 0, 0
	for i, entry := range entries {
		if entry.Title == "" || entry.Artist == "" {
			logger.Warn().Int("index", i).Msg("skipping entry without title and artist")
			skipped++
			continue
		}

		category := models.Category(entry.Category)
		if entry.Category == "" {
			category = models.CategoryGold
		}

		song := models.Song{
			Title:           entry.Title,
			Artist:          entry.Artist,
			Genre:           entry.Genre,
			Category:        category,
			Mood:            entry.Mood,
			Tempo:           models.TempoClass(entry.Tempo),
			TempoBPM:        entry.TempoBPM,
			Gender:          entry.Gender,
			Energy:          entry.Energy,
			Explicit:        entry.Explicit,
			DurationSeconds: entry.DurationSeconds,
			RotationWeight:  entry.RotationWeight,
			MinRestMinutes:  entry.MinRestMinutes,
			Active:          true,
			DateAdded:       time.Now().UTC(),
		}

		if importDryRun {
			imported++
			continue
		}
		if err := catalog.Create(ctx, &song); err != nil {
			return fmt.Errorf("import %q by %q: %w", entry.Title, entry.Artist, err)
		}
		imported++
	}

	if importDryRun {
		fmt.Printf("dry run: %d songs would be imported, %d skipped\n", imported, skipped)
		return nil
	}
	fmt.Printf("imported %d songs, skipped %d\n", imported, skipped)
	return nil
}
