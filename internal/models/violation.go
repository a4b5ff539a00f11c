/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// RuleType identifies which rule family produced a violation.
type RuleType string

const (
	RuleTypeSeparation RuleType = "separation"
	RuleTypeHourly     RuleType = "hourly"
	RuleTypeTempo      RuleType = "tempo"
	RuleTypeGender     RuleType = "gender"
	RuleTypeGenre      RuleType = "genre"
	RuleTypeDayparting RuleType = "dayparting"
)

// Severity grades a violation. Only critical blocks a play; warning and
// error are advisory and recorded for auditing.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Violation describes one failed or flagged rule check. Violations are
// transient values; the auditor serializes the ones it keeps into reports.
type Violation struct {
	RuleName  string    `json:"rule_name"`
	RuleType  RuleType  `json:"rule_type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	SongID    string    `json:"song_id,omitempty"`
	SongTitle string    `json:"song_title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Blocking reports whether this violation alone forbids the play.
func (v Violation) Blocking() bool {
	return v.Severity == SeverityCritical
}
