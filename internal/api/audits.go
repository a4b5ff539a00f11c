/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/muninn_rotation/internal/auditor"
	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/store"
	"github.com/friendsincode/muninn_rotation/internal/telemetry"
)

type auditRunRequest struct {
	End string `json:"end"`
}

// handleAuditRun generates a weekly compliance report ending now or at the
// supplied time.
func (a *API) handleAuditRun(w http.ResponseWriter, r *http.Request) {
	var req auditRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	var end time.Time
	if req.End != "" {
		parsed, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end")
			return
		}
		end = parsed.UTC()
	}

	start := time.Now()
	report := a.newAuditor().GenerateWeeklyReport(r.Context(), end)
	telemetry.AuditDuration.Observe(time.Since(start).Seconds())

	if a.cache != nil {
		_ = a.cache.InvalidateLatestReport(r.Context())
	}
	a.bus.Publish(events.EventReportGenerated, events.Payload{
		"start_date": report.StartDate,
		"end_date":   report.EndDate,
		"violations": len(report.RuleViolations),
	})

	writeJSON(w, http.StatusCreated, report)
}

// handleAuditLatest returns the most recently persisted audit report.
func (a *API) handleAuditLatest(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		var cached map[string]any
		if a.cache.GetLatestReport(r.Context(), &cached) {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	report, err := a.reports.Latest(r.Context())
	if errors.Is(err, store.ErrNoReports) {
		writeError(w, http.StatusNotFound, "no_reports")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load latest report failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := map[string]any{
		"id":           report.ID,
		"report_type":  report.ReportType,
		"start_date":   report.StartDate,
		"end_date":     report.EndDate,
		"generated_at": report.GeneratedAt,
	}
	// Stored sections are JSON text columns; inline them rather than
	// double-encoding.
	for key, raw := range map[string]string{
		"summary":         report.Summary,
		"data":            report.Data,
		"violations":      report.Violations,
		"recommendations": report.Recommendations,
	} {
		var section any
		if err := json.Unmarshal([]byte(raw), &section); err == nil {
			out[key] = section
		}
	}

	if a.cache != nil {
		_ = a.cache.SetLatestReport(r.Context(), out)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStatsQuick returns rolling play statistics without a full audit.
func (a *API) handleStatsQuick(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 24*31 {
			writeError(w, http.StatusBadRequest, "invalid_hours")
			return
		}
		hours = parsed
	}

	if a.cache != nil {
		var cached auditor.QuickStats
		if a.cache.GetQuickStats(r.Context(), hours, &cached) {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats, err := a.newAuditor().QuickStats(r.Context(), hours)
	if err != nil {
		a.logger.Error().Err(err).Msg("quick stats failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.cache != nil {
		_ = a.cache.SetQuickStats(r.Context(), hours, stats)
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleStatsLibrary returns catalog composition counts.
func (a *API) handleStatsLibrary(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		var cached store.LibraryStats
		if a.cache.GetLibraryStats(r.Context(), &cached) {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats, err := a.catalog.Stats(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("library stats failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.cache != nil {
		_ = a.cache.SetLibraryStats(r.Context(), stats)
	}
	writeJSON(w, http.StatusOK, stats)
}
