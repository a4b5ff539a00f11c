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

	"github.com/friendsincode/muninn_rotation/internal/auditor"
	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

// Audit flags
var (
	auditEnd     string
	auditJSON    bool
	auditNoSave  bool
	auditNoFiles bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Generate a weekly rotation compliance report",
	Long: `Audits the trailing seven days of play history against the library and the
active rules, stores the report, and prints the human-readable summary.

Examples:
  muninnrotation audit
  muninnrotation audit --end 2026-08-24T00:00:00Z --json
  muninnrotation audit --no-save --no-files`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditEnd, "end", "", "Report window end, RFC3339 (default: now)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the full report as JSON instead of the text summary")
	auditCmd.Flags().BoolVar(&auditNoSave, "no-save", false, "Skip persisting the report to the database")
	auditCmd.Flags().BoolVar(&auditNoFiles, "no-files", false, "Skip writing report files to the reports directory")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	end := time.Time{}
	if auditEnd != "" {
		parsed, err := time.Parse(time.RFC3339, auditEnd)
		if err != nil {
			return fmt.Errorf("parse --end: %w", err)
		}
		end = parsed.UTC()
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
		logger.Warn().Err(err).Str("path", cfg.RulesPath).Msg("rules file missing, auditing against default rules")
	}

	catalog := store.NewCatalogStore(database, logger)
	history := store.NewHistoryStore(database, logger)

	var sink auditor.ReportSink
	if !auditNoSave {
		sink = store.NewReportStore(database, logger)
	}

	aud := auditor.New(history, catalog, sink, rulesMgr.Current(), logger)
	if !auditNoFiles {
		aud.ReportsDir = cfg.ReportsDir
	}

	report := aud.GenerateWeeklyReport(context.Background(), end)

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Print(auditor.RenderSummary(report))
	return nil
}
