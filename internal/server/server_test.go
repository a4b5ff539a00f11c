/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNextAuditTimeLandsOnMonday(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "midweek rolls to next monday",
			now:  time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC), // Wednesday
			hour: 4,
			want: time.Date(2026, 8, 31, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "monday before the hour runs same day",
			now:  time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC), // Monday 02:00
			hour: 4,
			want: time.Date(2026, 8, 24, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "monday after the hour waits a week",
			now:  time.Date(2026, 8, 24, 5, 0, 0, 0, time.UTC), // Monday 05:00
			hour: 4,
			want: time.Date(2026, 8, 31, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the audit hour waits a week",
			now:  time.Date(2026, 8, 24, 4, 0, 0, 0, time.UTC),
			hour: 4,
			want: time.Date(2026, 8, 31, 4, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextAuditTime(tc.now, tc.hour)
			if !got.Equal(tc.want) {
				t.Errorf("nextAuditTime(%s, %d) = %s, want %s", tc.now, tc.hour, got, tc.want)
			}
			if got.Weekday() != time.Monday {
				t.Errorf("audit time on %s, want Monday", got.Weekday())
			}
			if !got.After(tc.now) {
				t.Error("audit time must be strictly in the future")
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	wantHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, want := range wantHeaders {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS set on plain HTTP response: %q", got)
	}
}

func TestSecurityHeadersHSTSBehindTLSProxy(t *testing.T) {
	handler := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("HSTS missing on forwarded HTTPS request")
	}
}
