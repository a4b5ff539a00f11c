/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ReportType labels the audit window shape.
type ReportType string

const (
	ReportWeekly ReportType = "weekly"
	ReportCustom ReportType = "custom"
)

// AuditReport is a persisted compliance summary for a time window. Reports
// are written once per audit run and never mutated; newer runs supersede
// older ones.
type AuditReport struct {
	ID          string     `gorm:"type:uuid;primaryKey"`
	ReportType  ReportType `gorm:"type:varchar(32)"`
	StartDate   time.Time  `gorm:"index"`
	EndDate     time.Time  `gorm:"index"`
	GeneratedAt time.Time

	// Serialized report sections. JSON keeps the report readable from any
	// backend without per-column migrations when sections evolve.
	Summary         string `gorm:"type:text"`
	Data            string `gorm:"type:text"`
	Violations      string `gorm:"type:text"`
	Recommendations string `gorm:"type:text"`
}

// TableName returns the table name for GORM.
func (AuditReport) TableName() string {
	return "audit_reports"
}
