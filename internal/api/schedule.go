/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/selector"
	"github.com/friendsincode/muninn_rotation/internal/store"
	"github.com/friendsincode/muninn_rotation/internal/telemetry"
)

// handleScheduleNext picks the next song for the slot. Query params:
// at (RFC3339, default now), seed (int64, default time-derived),
// exclude (comma handled client-side as repeated param).
func (a *API) handleScheduleNext(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_at")
			return
		}
		at = parsed.UTC()
	}

	var seed int64
	if v := r.URL.Query().Get("seed"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_seed")
			return
		}
		seed = parsed
	}

	ruleCtx, err := a.history.ContextAt(r.Context(), at)
	if err != nil {
		a.logger.Error().Err(err).Msg("load play context failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	sel := selector.New(a.catalog, a.rules.Current(), a.logger)
	result, err := sel.PickNext(r.Context(), selector.Request{
		At:          at,
		Seed:        seed,
		Context:     ruleCtx,
		ExcludedIDs: r.URL.Query()["exclude"],
	})
	if errors.Is(err, selector.ErrNoEligibleSong) {
		telemetry.SelectionFailures.Inc()
		writeError(w, http.StatusConflict, "no_eligible_song")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("selection failed")
		writeError(w, http.StatusInternalServerError, "selection_failed")
		return
	}

	telemetry.SelectionsTotal.WithLabelValues(string(result.Category)).Inc()
	for _, v := range result.Violations {
		telemetry.RuleViolationsTotal.WithLabelValues(string(v.RuleType), string(v.Severity)).Inc()
	}

	a.bus.Publish(events.EventSongSelected, events.Payload{
		"song_id":  result.Song.ID,
		"category": string(result.Category),
		"at":       at,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"song":       result.Song,
		"category":   result.Category,
		"violations": result.Violations,
	})
}

type historyAppendRequest struct {
	SongID         string  `json:"song_id"`
	PlayedAt       string  `json:"played_at"`
	ScheduledAt    string  `json:"scheduled_at"`
	Source         string  `json:"source"`
	DurationPlayed float64 `json:"duration_played"`
	Completed      *bool   `json:"completed"`
	Skipped        bool    `json:"skipped"`
	SkipReason     string  `json:"skip_reason"`
}

// handleHistoryAppend records an aired play and rolls the song's play stats
// forward.
func (a *API) handleHistoryAppend(w http.ResponseWriter, r *http.Request) {
	var req historyAppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "song_id_required")
		return
	}

	if _, err := a.catalog.ByID(r.Context(), req.SongID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "unknown_song")
			return
		}
		a.logger.Error().Err(err).Msg("lookup song failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	appendReq := store.AppendRequest{
		SongID:         req.SongID,
		Source:         models.PlaySource(req.Source),
		DurationPlayed: req.DurationPlayed,
		Skipped:        req.Skipped,
		SkipReason:     req.SkipReason,
	}
	// A play counts as completed unless the caller says otherwise.
	appendReq.Completed = !req.Skipped
	if req.Completed != nil {
		appendReq.Completed = *req.Completed
	}
	if req.PlayedAt != "" {
		playedAt, err := time.Parse(time.RFC3339, req.PlayedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_played_at")
			return
		}
		appendReq.PlayedAt = playedAt.UTC()
	}
	if req.ScheduledAt != "" {
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_scheduled_at")
			return
		}
		utc := scheduledAt.UTC()
		appendReq.ScheduledAt = &utc
	}

	entry, err := a.history.Append(r.Context(), appendReq)
	if err != nil {
		a.logger.Error().Err(err).Msg("append play failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Skipped plays stay in the log for skip-rate auditing but do not reset
	// the song's rest clock.
	if !entry.Skipped {
		if err := a.catalog.UpdatePlayStats(r.Context(), entry.SongID, entry.PlayedAt); err != nil {
			a.logger.Error().Err(err).Str("song_id", entry.SongID).Msg("update play stats failed")
		}
	}

	telemetry.PlaysLoggedTotal.WithLabelValues(string(entry.Source)).Inc()

	a.bus.Publish(events.EventPlayLogged, events.Payload{
		"play_id":   entry.ID,
		"song_id":   entry.SongID,
		"played_at": entry.PlayedAt,
		"skipped":   entry.Skipped,
	})

	writeJSON(w, http.StatusCreated, entry)
}

// handleHistoryRecent returns the most recent plays, newest first.
func (a *API) handleHistoryRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := a.history.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("query recent plays failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	type recentPlay struct {
		Play models.PlayLog `json:"play"`
		Song models.Song    `json:"song"`
	}
	out := make([]recentPlay, 0, len(records))
	for _, rec := range records {
		out = append(out, recentPlay{Play: rec.Play, Song: rec.Song})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plays": out})
}
