/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rules loads the station rule document and evaluates candidate
// songs against it.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/muninn_rotation/internal/models"
)

// Built-in defaults applied when the document omits a setting.
const (
	DefaultSongSeparationMinutes    = 180
	DefaultArtistSeparationMinutes  = 60
	DefaultMaxConsecutiveSlow       = 2
	DefaultMaxConsecutiveFast       = 3
	DefaultMaxConsecutiveSameGender = 3
	DefaultSameGenreSeparation      = 2
)

// ArtistScanWindow caps how many recent plays the artist separation check
// walks through.
const ArtistScanWindow = 10

// TempoScanWindow caps how many recent songs contribute to tempo runs.
const TempoScanWindow = 5

// DefaultCategoryWeights is the distribution used for hours no rule set
// covers. It must not vary silently; operators relying on it should see the
// same split everywhere.
var DefaultCategoryWeights = map[models.Category]int{
	models.CategoryCurrent:   30,
	models.CategoryRecurrent: 25,
	models.CategoryPowerGold: 25,
	models.CategoryGold:      15,
	models.CategoryDeepCut:   5,
}

// Document mirrors the YAML rule file schema.
type Document struct {
	Settings     *Settings      `yaml:"settings"`
	HourlyRules  []HourlyRuleSet `yaml:"hourly_rules"`
	TempoRules   *TempoRules    `yaml:"tempo_rules"`
	GenderRules  *GenderRules   `yaml:"gender_rules"`
	GenreRules   *GenreRules    `yaml:"genre_rules"`
	SpecialRules *SpecialRules  `yaml:"special_rules"`
}

// Settings holds global separation minima in minutes.
type Settings struct {
	SongSeparation   int `yaml:"song_separation"`
	ArtistSeparation int `yaml:"artist_separation"`
}

// HourlyRuleSet assigns category percentages and restrictions to a set of
// hours.
type HourlyRuleSet struct {
	Name         string          `yaml:"name"`
	Hours        []int           `yaml:"hours"`
	Rules        []CategoryShare `yaml:"rules"`
	Restrictions []Restriction   `yaml:"restrictions"`
}

// CategoryShare is one category's slice of an hourly rule set.
type CategoryShare struct {
	Category   models.Category `yaml:"category"`
	Percentage int             `yaml:"percentage"`
}

// Restriction flags moods to steer away from during the rule set's hours.
type Restriction struct {
	Action string   `yaml:"action"`
	Mood   []string `yaml:"mood"`
	Reason string   `yaml:"reason"`
}

// TempoRules bounds consecutive same-tempo runs.
type TempoRules struct {
	MaxConsecutiveSlow int `yaml:"max_consecutive_slow"`
	MaxConsecutiveFast int `yaml:"max_consecutive_fast"`
}

// GenderRules bounds consecutive same-gender runs.
type GenderRules struct {
	MaxConsecutiveSameGender int `yaml:"max_consecutive_same_gender"`
}

// GenreRules bounds genre repetition and hourly genre exposure.
type GenreRules struct {
	SameGenreSeparation int          `yaml:"same_genre_separation"`
	HourlyLimits        []GenreLimit `yaml:"hourly_limits"`
}

// GenreLimit caps plays of one genre per clock hour.
type GenreLimit struct {
	Genre      string `yaml:"genre"`
	MaxPerHour int    `yaml:"max_per_hour"`
}

// SpecialRules carries dayparting restrictions.
type SpecialRules struct {
	Dayparting []DaypartRule `yaml:"dayparting"`
}

// DaypartRule restricts content during a set of hours and days. Nil Hours
// or Days means every hour or day.
type DaypartRule struct {
	Name      string           `yaml:"name"`
	Hours     []int            `yaml:"hours"`
	Days      []int            `yaml:"days"`
	Condition DaypartCondition `yaml:"condition"`
}

// DaypartCondition is the restriction payload. Explicit left unset means the
// rule has no opinion on explicit content.
type DaypartCondition struct {
	Explicit *bool `yaml:"explicit"`
}

// Config is a loaded, queryable rule document.
type Config struct {
	doc Document
}

// Load reads and parses a YAML rule file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML rule document. A decode failure is a configuration
// error; semantically incomplete documents parse fine and surface through
// Validate instead.
func Parse(raw []byte) (*Config, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules document: %w", err)
	}
	return &Config{doc: doc}, nil
}

// Save re-serializes the active document to path.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c.doc)
	if err != nil {
		return fmt.Errorf("marshal rules document: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}

// Document returns a copy of the underlying document.
func (c *Config) Document() Document {
	return c.doc
}

// SongSeparation returns the global song rest minimum in minutes.
func (c *Config) SongSeparation() int {
	if c.doc.Settings != nil && c.doc.Settings.SongSeparation > 0 {
		return c.doc.Settings.SongSeparation
	}
	return DefaultSongSeparationMinutes
}

// ArtistSeparation returns the artist rest minimum in minutes.
func (c *Config) ArtistSeparation() int {
	if c.doc.Settings != nil && c.doc.Settings.ArtistSeparation > 0 {
		return c.doc.Settings.ArtistSeparation
	}
	return DefaultArtistSeparationMinutes
}

// MaxConsecutiveSlow returns the slow-run bound.
func (c *Config) MaxConsecutiveSlow() int {
	if c.doc.TempoRules != nil && c.doc.TempoRules.MaxConsecutiveSlow > 0 {
		return c.doc.TempoRules.MaxConsecutiveSlow
	}
	return DefaultMaxConsecutiveSlow
}

// MaxConsecutiveFast returns the fast-run bound.
func (c *Config) MaxConsecutiveFast() int {
	if c.doc.TempoRules != nil && c.doc.TempoRules.MaxConsecutiveFast > 0 {
		return c.doc.TempoRules.MaxConsecutiveFast
	}
	return DefaultMaxConsecutiveFast
}

// MaxConsecutiveSameGender returns the gender-run bound.
func (c *Config) MaxConsecutiveSameGender() int {
	if c.doc.GenderRules != nil && c.doc.GenderRules.MaxConsecutiveSameGender > 0 {
		return c.doc.GenderRules.MaxConsecutiveSameGender
	}
	return DefaultMaxConsecutiveSameGender
}

// SameGenreSeparation returns the minimum distance in songs between plays
// of the same genre.
func (c *Config) SameGenreSeparation() int {
	if c.doc.GenreRules != nil && c.doc.GenreRules.SameGenreSeparation > 0 {
		return c.doc.GenreRules.SameGenreSeparation
	}
	return DefaultSameGenreSeparation
}

// hourlySetFor returns the rule set covering hour, if any.
func (c *Config) hourlySetFor(hour int) *HourlyRuleSet {
	for i := range c.doc.HourlyRules {
		for _, h := range c.doc.HourlyRules[i].Hours {
			if h == hour {
				return &c.doc.HourlyRules[i]
			}
		}
	}
	return nil
}

// CategoryWeights returns the configured percentage distribution for the
// given hour, or DefaultCategoryWeights when no rule set covers it.
func (c *Config) CategoryWeights(hour int) map[models.Category]int {
	if set := c.hourlySetFor(hour); set != nil {
		weights := make(map[models.Category]int, len(set.Rules))
		for _, share := range set.Rules {
			weights[share.Category] = share.Percentage
		}
		return weights
	}

	weights := make(map[models.Category]int, len(DefaultCategoryWeights))
	for cat, pct := range DefaultCategoryWeights {
		weights[cat] = pct
	}
	return weights
}

// Summary reports the shape of the active rule set for operators.
type Summary struct {
	SongSeparation   int `json:"song_separation"`
	ArtistSeparation int `json:"artist_separation"`
	HourlyRuleSets   int `json:"hourly_rule_sets"`
	GenreLimits      int `json:"genre_limits"`
	DaypartingRules  int `json:"dayparting_rules"`
}

// Summarize builds a Summary of the loaded document.
func (c *Config) Summarize() Summary {
	s := Summary{
		SongSeparation:   c.SongSeparation(),
		ArtistSeparation: c.ArtistSeparation(),
		HourlyRuleSets:   len(c.doc.HourlyRules),
	}
	if c.doc.GenreRules != nil {
		s.GenreLimits = len(c.doc.GenreRules.HourlyLimits)
	}
	if c.doc.SpecialRules != nil {
		s.DaypartingRules = len(c.doc.SpecialRules.Dayparting)
	}
	return s
}
