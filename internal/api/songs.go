/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/models"
)

type songCreateRequest struct {
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Genre           string  `json:"genre"`
	Category        string  `json:"category"`
	Mood            string  `json:"mood"`
	Tempo           string  `json:"tempo"`
	TempoBPM        float64 `json:"tempo_bpm"`
	Gender          string  `json:"gender"`
	Energy          string  `json:"energy"`
	Explicit        bool    `json:"explicit"`
	DurationSeconds float64 `json:"duration_seconds"`
	RotationWeight  float64 `json:"rotation_weight"`
	MinRestMinutes  int     `json:"min_rest_minutes"`
}

func (a *API) handleSongsCreate(w http.ResponseWriter, r *http.Request) {
	var req songCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Title == "" || req.Artist == "" {
		writeError(w, http.StatusBadRequest, "title_and_artist_required")
		return
	}
	if !validCategory(models.Category(req.Category)) {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}

	song := models.Song{
		Title:           req.Title,
		Artist:          req.Artist,
		Genre:           req.Genre,
		Category:        models.Category(req.Category),
		Mood:            req.Mood,
		Tempo:           models.TempoClass(req.Tempo),
		TempoBPM:        req.TempoBPM,
		Gender:          req.Gender,
		Energy:          req.Energy,
		Explicit:        req.Explicit,
		DurationSeconds: req.DurationSeconds,
		RotationWeight:  req.RotationWeight,
		MinRestMinutes:  req.MinRestMinutes,
		Active:          true,
	}

	if err := a.catalog.Create(r.Context(), &song); err != nil {
		a.logger.Error().Err(err).Msg("create song failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.cache != nil {
		_ = a.cache.InvalidateLibraryStats(r.Context())
	}
	a.bus.Publish(events.EventCatalogUpdated, events.Payload{"song_id": song.ID})

	writeJSON(w, http.StatusCreated, song)
}

func (a *API) handleSongsList(w http.ResponseWriter, r *http.Request) {
	category := models.Category(r.URL.Query().Get("category"))
	if category != "" && !validCategory(category) {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}

	songs, err := a.catalog.List(r.Context(), category)
	if err != nil {
		a.logger.Error().Err(err).Msg("list songs failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (a *API) handleSongsGet(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "songID")
	if songID == "" {
		writeError(w, http.StatusBadRequest, "song_id_required")
		return
	}

	song, err := a.catalog.ByID(r.Context(), songID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get song failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func validCategory(c models.Category) bool {
	for _, known := range models.Categories {
		if c == known {
			return true
		}
	}
	return false
}
