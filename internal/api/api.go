/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the rotation engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/auditor"
	"github.com/friendsincode/muninn_rotation/internal/cache"
	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/logbuffer"
	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/store"
)

// API exposes HTTP handlers.
type API struct {
	db         *gorm.DB
	catalog    *store.CatalogStore
	history    *store.HistoryStore
	reports    *store.ReportStore
	rules      *rules.Manager
	cache      *cache.Cache
	bus        *events.Bus
	logBuffer  *logbuffer.Buffer
	reportsDir string
	logger     zerolog.Logger
}

// New creates the API router wrapper. cache and logBuf may be nil.
func New(db *gorm.DB, catalog *store.CatalogStore, history *store.HistoryStore, reports *store.ReportStore, rulesMgr *rules.Manager, entityCache *cache.Cache, bus *events.Bus, logBuf *logbuffer.Buffer, reportsDir string, logger zerolog.Logger) *API {
	return &API{
		db:         db,
		catalog:    catalog,
		history:    history,
		reports:    reports,
		rules:      rulesMgr,
		cache:      entityCache,
		bus:        bus,
		logBuffer:  logBuf,
		reportsDir: reportsDir,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", a.handleSongsList)
			r.Post("/", a.handleSongsCreate)
			r.Get("/{songID}", a.handleSongsGet)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/next", a.handleScheduleNext)
		})

		r.Route("/history", func(r chi.Router) {
			r.Post("/", a.handleHistoryAppend)
			r.Get("/recent", a.handleHistoryRecent)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/summary", a.handleRulesSummary)
			r.Post("/validate", a.handleRulesValidate)
			r.Post("/reload", a.handleRulesReload)
		})

		r.Route("/audits", func(r chi.Router) {
			r.Post("/", a.handleAuditRun)
			r.Get("/latest", a.handleAuditLatest)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/quick", a.handleStatsQuick)
			r.Get("/library", a.handleStatsLibrary)
		})

		r.Get("/logs", a.handleLogs)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// newAuditor builds an auditor against the current rule snapshot.
func (a *API) newAuditor() *auditor.Auditor {
	aud := auditor.New(a.history, a.catalog, a.reports, a.rules.Current(), a.logger)
	aud.ReportsDir = a.reportsDir
	return aud
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
