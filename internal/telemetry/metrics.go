/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes the engine's Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API surface.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muninn_api_requests_total",
			Help: "HTTP requests served, by method, endpoint and status.",
		},
		[]string{"method", "endpoint", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "muninn_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	APIActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "muninn_api_active_connections",
			Help: "In-flight HTTP requests.",
		},
	)

	// Database layer.
	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "muninn_db_query_duration_seconds",
			Help:    "Database operation latency, by operation and table.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)
	DatabaseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muninn_db_errors_total",
			Help: "Database errors, by operation and kind.",
		},
		[]string{"operation", "kind"},
	)
	DatabaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "muninn_db_connections_active",
			Help: "Open database connections.",
		},
	)

	// Rotation engine.
	SelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muninn_selections_total",
			Help: "Song selections, by rotation category.",
		},
		[]string{"category"},
	)
	SelectionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "muninn_selection_failures_total",
			Help: "Selection attempts that found no eligible song.",
		},
	)
	RuleViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muninn_rule_violations_total",
			Help: "Rule violations observed during selection, by rule type and severity.",
		},
		[]string{"rule_type", "severity"},
	)
	PlaysLoggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muninn_plays_logged_total",
			Help: "Plays appended to the history log, by source.",
		},
		[]string{"source"},
	)
	AuditDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "muninn_audit_duration_seconds",
			Help:    "Wall time of weekly audit report generation.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveConnections,
		DatabaseQueryDuration,
		DatabaseErrorsTotal,
		DatabaseConnectionsActive,
		SelectionsTotal,
		SelectionFailures,
		RuleViolationsTotal,
		PlaysLoggedTotal,
		AuditDuration,
	)
}

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
