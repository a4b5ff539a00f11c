/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/models"
)

// ErrNoReports indicates no audit report has been generated yet.
var ErrNoReports = errors.New("no audit reports available")

// ReportStore persists audit reports.
type ReportStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewReportStore creates a report store.
func NewReportStore(db *gorm.DB, logger zerolog.Logger) *ReportStore {
	return &ReportStore{
		db:     db,
		logger: logger.With().Str("component", "report_store").Logger(),
	}
}

// Save inserts a new report. Reports are insert-only; later runs supersede
// earlier ones by generation time.
func (s *ReportStore) Save(ctx context.Context, report *models.AuditReport) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("save audit report: %w", err)
	}
	return nil
}

// Latest returns the most recently generated report.
func (s *ReportStore) Latest(ctx context.Context) (models.AuditReport, error) {
	var report models.AuditReport
	err := s.db.WithContext(ctx).Order("generated_at DESC").First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AuditReport{}, ErrNoReports
	}
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("load latest report: %w", err)
	}
	return report, nil
}
