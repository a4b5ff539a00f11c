/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/selector"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

// Pick flags
var (
	pickAt   string
	pickSeed int64
	pickJSON bool
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick the next song for a slot",
	Long: `Runs one selection pass against the live catalog and play history and
prints the decision. The database is not modified; use log-play to record
the play once it airs.

Examples:
  muninnrotation pick
  muninnrotation pick --at 2026-08-29T15:00:00Z --seed 42 --json`,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)

	pickCmd.Flags().StringVar(&pickAt, "at", "", "Slot time, RFC3339 (default: now)")
	pickCmd.Flags().Int64Var(&pickSeed, "seed", 0, "Random seed for reproducible selection (default: time-derived)")
	pickCmd.Flags().BoolVar(&pickJSON, "json", false, "Print the full decision as JSON")
}

func runPick(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	at := time.Now().UTC()
	if pickAt != "" {
		parsed, err := time.Parse(time.RFC3339, pickAt)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		at = parsed.UTC()
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}

	rulesMgr, err := rules.NewManager(cfg.RulesPath)
	if err != nil {
		if rulesMgr == nil {
			return fmt.Errorf("load rules: %w", err)
		}
		logger.Warn().Err(err).Str("path", cfg.RulesPath).Msg("rules file missing, running on default rules")
	}

	catalog := store.NewCatalogStore(database, logger)
	history := store.NewHistoryStore(database, logger)

	ctx := context.Background()
	ruleCtx, err := history.ContextAt(ctx, at)
	if err != nil {
		return fmt.Errorf("load play context: %w", err)
	}

	sel := selector.New(catalog, rulesMgr.Current(), logger)
	result, err := sel.PickNext(ctx, selector.Request{At: at, Seed: pickSeed, Context: ruleCtx})
	if errors.Is(err, selector.ErrNoEligibleSong) {
		fmt.Println("no eligible song: every candidate is blocked by the current rules")
		os.Exit(1)
	}
	if err != nil {
		return err
	}

	if pickJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"song":       result.Song,
			"category":   result.Category,
			"violations": result.Violations,
		})
	}

	fmt.Printf("%s - %s [%s] (id %s)\n", result.Song.Artist, result.Song.Title, result.Category, result.Song.ID)
	for _, v := range result.Violations {
		fmt.Printf("  [%s] %s: %s\n", v.Severity, v.RuleName, v.Message)
	}
	return nil
}
