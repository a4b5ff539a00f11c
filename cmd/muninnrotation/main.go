/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/config"
	"github.com/friendsincode/muninn_rotation/internal/db"
	"github.com/friendsincode/muninn_rotation/internal/logbuffer"
	"github.com/friendsincode/muninn_rotation/internal/logging"
	"github.com/friendsincode/muninn_rotation/internal/server"
	"github.com/friendsincode/muninn_rotation/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "muninnrotation",
	Short: "Muninn Rotation - rotation scheduling and compliance engine",
	Long:  "Muninn Rotation schedules music rotation for broadcast automation: weighted song selection, scheduling rule enforcement, and weekly compliance audits.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rotation engine server",
	Long:  "Start the HTTP API server, metrics endpoint, and weekly audit scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

// openDatabase connects and migrates for one-shot commands that bypass the
// server.
func openDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	// Route every log line through the capture buffer so the API can serve
	// recent logs.
	logBuf := logbuffer.New(cfg.LogBufferSize)
	logger = logging.SetupWithCapture(cfg.Environment, logbuffer.NewWriter(logBuf))

	logger.Info().Str("version", version.Get().Version).Msg("Muninn Rotation starting")

	srv, err := server.New(cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Muninn Rotation stopped")
	return nil
}
