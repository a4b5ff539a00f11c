/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "testing"

func TestDaypartForHour(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{0, "Overnight"},
		{5, "Overnight"},
		{6, "Morning Drive"},
		{9, "Morning Drive"},
		{10, "Midday"},
		{14, "Midday"},
		{15, "Afternoon Drive"},
		{18, "Afternoon Drive"},
		{19, "Evening"},
		{23, "Evening"},
	}
	for _, tc := range cases {
		if got := DaypartForHour(tc.hour); got != tc.want {
			t.Errorf("DaypartForHour(%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestSongRestMinutes(t *testing.T) {
	song := Song{}
	if got := song.RestMinutes(180); got != 180 {
		t.Errorf("RestMinutes = %d, want global 180", got)
	}
	song.MinRestMinutes = 45
	if got := song.RestMinutes(180); got != 45 {
		t.Errorf("RestMinutes = %d, want override 45", got)
	}
}

func TestViolationBlocking(t *testing.T) {
	cases := []struct {
		severity Severity
		want     bool
	}{
		{SeverityWarning, false},
		{SeverityError, false},
		{SeverityCritical, true},
	}
	for _, tc := range cases {
		v := Violation{Severity: tc.severity}
		if got := v.Blocking(); got != tc.want {
			t.Errorf("Blocking(%s) = %v, want %v", tc.severity, got, tc.want)
		}
	}
}
