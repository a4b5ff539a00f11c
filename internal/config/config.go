/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// RulesPath points at the YAML rotation rules document.
	RulesPath string
	// ReportsDir receives exported audit reports. Empty disables file export.
	ReportsDir string

	// AuditHour is the local hour (0-23) at which the weekly audit fires.
	AuditHour int

	// LogBufferSize caps the in-memory log capture ring served by the API.
	LogBufferSize int

	// Redis cache configuration. CacheEnabled false runs everything straight
	// from the database.
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"MUNINN_ENV", "KMGI_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"MUNINN_HTTP_BIND", "KMGI_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"MUNINN_HTTP_PORT", "KMGI_HTTP_PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"MUNINN_DB_BACKEND", "KMGI_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"MUNINN_DB_DSN", "KMGI_DB_DSN"}, ""),
		MetricsBind: getEnvAny([]string{"MUNINN_METRICS_BIND", "KMGI_METRICS_BIND"}, "127.0.0.1:9000"),

		RulesPath:  getEnvAny([]string{"MUNINN_RULES_PATH", "KMGI_RULES_PATH"}, "config/rules.yaml"),
		ReportsDir: getEnvAny([]string{"MUNINN_REPORTS_DIR", "KMGI_REPORTS_DIR"}, "reports"),

		AuditHour: getEnvIntAny([]string{"MUNINN_AUDIT_HOUR", "KMGI_AUDIT_HOUR"}, 6),

		LogBufferSize: getEnvIntAny([]string{"MUNINN_LOG_BUFFER_SIZE", "KMGI_LOG_BUFFER_SIZE"}, 1000),

		CacheEnabled:  getEnvBoolAny([]string{"MUNINN_CACHE_ENABLED", "KMGI_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"MUNINN_REDIS_ADDR", "KMGI_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"MUNINN_REDIS_PASSWORD", "KMGI_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"MUNINN_REDIS_DB", "KMGI_REDIS_DB"}, 0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend != DatabaseSQLite {
			return nil, fmt.Errorf("MUNINN_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
		cfg.DBDSN = "muninn.db"
	}

	if cfg.AuditHour < 0 || cfg.AuditHour > 23 {
		return nil, fmt.Errorf("MUNINN_AUDIT_HOUR must be between 0 and 23, got %d", cfg.AuditHour)
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT": "use MUNINN_ENV (or KMGI_ENV)",
		"DB_DSN":      "use MUNINN_DB_DSN (or KMGI_DB_DSN)",
		"RULES_PATH":  "use MUNINN_RULES_PATH (or KMGI_RULES_PATH)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the bind address for the API listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
