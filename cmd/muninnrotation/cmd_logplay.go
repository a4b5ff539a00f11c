/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

// Log-play flags
var (
	logPlayAt       string
	logPlaySource   string
	logPlayDuration float64
	logPlaySkipped  bool
	logPlayReason   string
)

var logPlayCmd = &cobra.Command{
	Use:   "log-play <song-id>",
	Short: "Record a play in the broadcast log",
	Long: `Appends an entry to the play log for the given song. Aired plays also
update the song's last-played time and play count; skipped plays are logged
but leave the song's rest clock untouched.

Examples:
  muninnrotation log-play 3f2a...
  muninnrotation log-play 3f2a... --skipped --reason "operator override"`,
	Args: cobra.ExactArgs(1),
	RunE: runLogPlay,
}

func init() {
	rootCmd.AddCommand(logPlayCmd)

	logPlayCmd.Flags().StringVar(&logPlayAt, "at", "", "Play time, RFC3339 (default: now)")
	logPlayCmd.Flags().StringVar(&logPlaySource, "source", string(models.SourceRotation), "Play source (rotation, request, manual)")
	logPlayCmd.Flags().Float64Var(&logPlayDuration, "duration", 0, "Seconds actually played (default: song length)")
	logPlayCmd.Flags().BoolVar(&logPlaySkipped, "skipped", false, "Record the play as skipped")
	logPlayCmd.Flags().StringVar(&logPlayReason, "reason", "", "Skip reason")
}

func runLogPlay(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	playedAt := time.Now().UTC()
	if logPlayAt != "" {
		parsed, err := time.Parse(time.RFC3339, logPlayAt)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		playedAt = parsed.UTC()
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}

	catalog := store.NewCatalogStore(database, logger)
	history := store.NewHistoryStore(database, logger)

	ctx := context.Background()
	song, err := catalog.ByID(ctx, args[0])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("unknown song %q", args[0])
	}
	if err != nil {
		return err
	}

	duration := logPlayDuration
	if duration == 0 && !logPlaySkipped {
		duration = song.DurationSeconds
	}

	entry, err := history.Append(ctx, store.AppendRequest{
		SongID:         song.ID,
		PlayedAt:       playedAt,
		Source:         models.PlaySource(logPlaySource),
		DurationPlayed: duration,
		Completed:      !logPlaySkipped,
		Skipped:        logPlaySkipped,
		SkipReason:     logPlayReason,
	})
	if err != nil {
		return err
	}

	if !logPlaySkipped {
		if err := catalog.UpdatePlayStats(ctx, song.ID, playedAt); err != nil {
			return err
		}
	}

	fmt.Printf("logged %s - %s at %s (entry %s)\n", song.Artist, song.Title, playedAt.Format(time.RFC3339), entry.ID)
	return nil
}
