/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/telemetry"
)

const _startTime = "gorm:start_time"

// RegisterCallbacks hooks telemetry into every GORM CRUD operation.
func RegisterCallbacks(database *gorm.DB) error {
	cb := database.Callback()

	if err := cb.Query().Before("gorm:query").Register("telemetry:before_query", recordStart); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("telemetry:after_query", recordMetrics("query")); err != nil {
		return err
	}
	if err := cb.Create().Before("gorm:create").Register("telemetry:before_create", recordStart); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("telemetry:after_create", recordMetrics("create")); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("telemetry:before_update", recordStart); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("telemetry:after_update", recordMetrics("update")); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", recordStart); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("telemetry:after_delete", recordMetrics("delete")); err != nil {
		return err
	}
	return nil
}

func recordStart(database *gorm.DB) {
	database.InstanceSet(_startTime, time.Now())
}

func recordMetrics(operation string) func(*gorm.DB) {
	return func(database *gorm.DB) {
		value, ok := database.InstanceGet(_startTime)
		if !ok {
			return
		}
		start, ok := value.(time.Time)
		if !ok {
			return
		}

		table := database.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())

		if database.Error != nil && database.Error != gorm.ErrRecordNotFound {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, "query_error").Inc()
		}
	}
}

// UpdateConnectionMetrics refreshes connection pool gauges. Callers run it on
// a ticker.
func UpdateConnectionMetrics(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
