/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selector picks the next song to air from the catalog under the
// active rule configuration.
package selector

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_rotation/internal/models"
	"github.com/friendsincode/muninn_rotation/internal/rules"
)

// ErrNoEligibleSong indicates no candidate satisfied the rules. This is a
// normal outcome under rule pressure, not a fault; callers choose their own
// fallback.
var ErrNoEligibleSong = errors.New("no eligible song matching all rules")

// RecentArtistExclusions is how many most-recently-played artists are kept
// out of the eligible query.
const RecentArtistExclusions = 5

// EligibleQuery describes a catalog eligibility lookup.
type EligibleQuery struct {
	Category        models.Category
	MinRestMinutes  int
	ExcludedArtists []string
	ExcludedIDs     []string
	Now             time.Time
}

// Catalog is the slice of the catalog store the selector needs.
type Catalog interface {
	Eligible(ctx context.Context, q EligibleQuery) ([]models.Song, error)
}

// Selector makes one scheduling decision at a time. It never writes a play
// log; recording the play after on-air confirmation is the caller's job.
type Selector struct {
	catalog Catalog
	config  *rules.Config
	logger  zerolog.Logger
}

// New creates a selector over the catalog and rule configuration.
func New(catalog Catalog, config *rules.Config, logger zerolog.Logger) *Selector {
	return &Selector{
		catalog: catalog,
		config:  config,
		logger:  logger.With().Str("component", "selector").Logger(),
	}
}

// Request parameterizes one pick.
type Request struct {
	// At is the moment being scheduled; the zero value means now.
	At time.Time
	// Seed fixes the weighted category draw for reproducible decisions.
	// Zero seeds from the clock.
	Seed int64
	// Context is the rolling rule context materialized from recent history.
	Context rules.Context
	// ExcludedIDs are catalog IDs to skip outright.
	ExcludedIDs []string
}

// Result is an approved pick plus any advisory violations it carries.
type Result struct {
	Song       models.Song
	Category   models.Category
	Violations []models.Violation
}

// PickNext chooses the next playable song. Categories are drawn from an
// integer-weighted bag for the current hour; within a category, candidates
// are evaluated in a stable order so identical seeds give identical picks.
func (s *Selector) PickNext(ctx context.Context, req Request) (Result, error) {
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	ruleCtx := req.Context
	if ruleCtx.Now.IsZero() {
		ruleCtx = rules.ContextAt(at)
	}

	seed := req.Seed
	if seed == 0 {
		seed = at.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	bag := weightedBag(s.config.CategoryWeights(ruleCtx.Hour), rng)
	excludedArtists := recentArtists(ruleCtx.RecentPlays, RecentArtistExclusions)

	tried := make(map[models.Category]bool)
	for _, category := range bag {
		if tried[category] {
			continue
		}
		tried[category] = true

		songs, err := s.catalog.Eligible(ctx, EligibleQuery{
			Category:        category,
			MinRestMinutes:  s.config.SongSeparation(),
			ExcludedArtists: excludedArtists,
			ExcludedIDs:     req.ExcludedIDs,
			Now:             at,
		})
		if err != nil {
			return Result{}, err
		}

		sortCandidates(songs)

		for _, song := range songs {
			if !song.Active {
				continue
			}
			decision := s.config.Evaluate(song, ruleCtx)
			if decision.MayPlay {
				s.logger.Debug().
					Str("song_id", song.ID).
					Str("category", string(category)).
					Int("advisory_violations", len(decision.Violations)).
					Msg("selected next song")
				return Result{Song: song, Category: category, Violations: decision.Violations}, nil
			}
		}
	}

	s.logger.Warn().Int("hour", ruleCtx.Hour).Msg("no eligible songs found matching all rules")
	return Result{}, ErrNoEligibleSong
}

// weightedBag expands percentages into a shuffled bag of category draws.
func weightedBag(weights map[models.Category]int, rng *rand.Rand) []models.Category {
	// Map iteration order is random; fill the bag in a fixed category
	// order so a given seed always produces the same shuffle.
	bag := make([]models.Category, 0, 100)
	for _, category := range models.Categories {
		for i := 0; i < weights[category]; i++ {
			bag = append(bag, category)
		}
	}
	// Categories outside the built-in tier list still get their draws.
	var extras []models.Category
	for category := range weights {
		if !knownCategory(category) {
			extras = append(extras, category)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	for _, category := range extras {
		for i := 0; i < weights[category]; i++ {
			bag = append(bag, category)
		}
	}

	rng.Shuffle(len(bag), func(i, j int) {
		bag[i], bag[j] = bag[j], bag[i]
	})
	return bag
}

func knownCategory(c models.Category) bool {
	for _, known := range models.Categories {
		if known == c {
			return true
		}
	}
	return false
}

// sortCandidates orders songs never-played first, then by ascending last
// play, then by ID. The order is part of the selection contract.
func sortCandidates(songs []models.Song) {
	sort.SliceStable(songs, func(i, j int) bool {
		a, b := songs[i], songs[j]
		switch {
		case a.LastPlayed == nil && b.LastPlayed != nil:
			return true
		case a.LastPlayed != nil && b.LastPlayed == nil:
			return false
		case a.LastPlayed != nil && b.LastPlayed != nil && !a.LastPlayed.Equal(*b.LastPlayed):
			return a.LastPlayed.Before(*b.LastPlayed)
		default:
			return a.ID < b.ID
		}
	})
}

// recentArtists collects up to limit distinct artists, most recent first.
func recentArtists(plays []rules.RecentPlay, limit int) []string {
	var artists []string
	seen := make(map[string]bool)
	for _, play := range plays {
		if play.Artist == "" || seen[play.Artist] {
			continue
		}
		seen[play.Artist] = true
		artists = append(artists, play.Artist)
		if len(artists) == limit {
			break
		}
	}
	return artists
}
