/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the rotation engine's services behind one HTTP
// listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/api"
	"github.com/friendsincode/muninn_rotation/internal/auditor"
	"github.com/friendsincode/muninn_rotation/internal/cache"
	"github.com/friendsincode/muninn_rotation/internal/config"
	"github.com/friendsincode/muninn_rotation/internal/db"
	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/logbuffer"
	"github.com/friendsincode/muninn_rotation/internal/rules"
	"github.com/friendsincode/muninn_rotation/internal/store"
	"github.com/friendsincode/muninn_rotation/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	logBuffer *logbuffer.Buffer
	catalog   *store.CatalogStore
	history   *store.HistoryStore
	reports   *store.ReportStore
	rules     *rules.Manager
	api       *api.API
	bus       *events.Bus

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		logBuffer: logBuf,
		router:    router,
		bus:       events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.ReportsDir != "" {
		if err := os.MkdirAll(s.cfg.ReportsDir, 0o755); err != nil {
			s.logger.Warn().Err(err).Str("path", s.cfg.ReportsDir).Msg("reports directory unavailable, file export disabled")
			s.cfg.ReportsDir = ""
		}
	}

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	s.catalog = store.NewCatalogStore(database, s.logger)
	s.history = store.NewHistoryStore(database, s.logger)
	s.reports = store.NewReportStore(database, s.logger)

	rulesMgr, err := rules.NewManager(s.cfg.RulesPath)
	if err != nil {
		// A missing file degrades to defaults; a malformed one must not.
		if rulesMgr == nil {
			return fmt.Errorf("load rules: %w", err)
		}
		s.logger.Warn().Err(err).Str("path", s.cfg.RulesPath).Msg("rules file missing, running on default rules")
	}
	s.rules = rulesMgr
	for _, issue := range rulesMgr.Current().Validate() {
		s.logger.Warn().Str("section", issue.Section).Msg(issue.Message)
	}

	s.api = api.New(database, s.catalog, s.history, s.reports, s.rules, s.cache, s.bus, s.logBuffer, s.cfg.ReportsDir, s.logger)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// LogBuffer returns the capture buffer the server was built with, if any.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runWeeklyAuditLoop(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runConnectionMetricsLoop(ctx)
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runWeeklyAuditLoop fires the compliance audit once a week, at the
// configured hour on Monday mornings.
func (s *Server) runWeeklyAuditLoop(ctx context.Context) {
	for {
		next := nextAuditTime(time.Now().UTC(), s.cfg.AuditHour)
		s.logger.Info().Time("next_run", next).Msg("weekly audit scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		start := time.Now()
		aud := auditor.New(s.history, s.catalog, s.reports, s.rules.Current(), s.logger)
		aud.ReportsDir = s.cfg.ReportsDir
		report := aud.GenerateWeeklyReport(ctx, time.Time{})
		telemetry.AuditDuration.Observe(time.Since(start).Seconds())

		if s.cache != nil {
			_ = s.cache.InvalidateLatestReport(ctx)
		}
		s.bus.Publish(events.EventReportGenerated, events.Payload{
			"start_date": report.StartDate,
			"end_date":   report.EndDate,
			"violations": len(report.RuleViolations),
		})
	}
}

// nextAuditTime returns the next Monday at hour (UTC) strictly after now.
func nextAuditTime(now time.Time, hour int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	for candidate.Weekday() != time.Monday || !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func (s *Server) runConnectionMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.UpdateConnectionMetrics(s.db)
		}
	}
}

// runCacheInvalidationListener drops derived caches when the underlying data
// changes.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	playLogged := s.bus.Subscribe(events.EventPlayLogged)
	catalogUpdated := s.bus.Subscribe(events.EventCatalogUpdated)
	rulesReloaded := s.bus.Subscribe(events.EventRulesReloaded)

	defer func() {
		s.bus.Unsubscribe(events.EventPlayLogged, playLogged)
		s.bus.Unsubscribe(events.EventCatalogUpdated, catalogUpdated)
		s.bus.Unsubscribe(events.EventRulesReloaded, rulesReloaded)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case <-playLogged:
			_ = s.cache.InvalidateQuickStats(ctx)

		case <-catalogUpdated:
			_ = s.cache.InvalidateLibraryStats(ctx)
			_ = s.cache.InvalidateQuickStats(ctx)

		case <-rulesReloaded:
			_ = s.cache.InvalidateRulesSummary(ctx)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
