/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"fmt"
	"sort"
)

// Issue is one semantic problem with a parsed rule document. Issues are
// advisory: the engine runs with them present, filling gaps with defaults.
type Issue struct {
	Section string `json:"section"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Section + ": " + i.Message
}

// Validate checks the document for semantic gaps. An empty result means the
// configuration is fully usable; issues are returned, never raised.
func (c *Config) Validate() []Issue {
	var issues []Issue

	empty := c.doc.Settings == nil && len(c.doc.HourlyRules) == 0 &&
		c.doc.TempoRules == nil && c.doc.GenderRules == nil &&
		c.doc.GenreRules == nil && c.doc.SpecialRules == nil
	if empty {
		return []Issue{{Section: "document", Message: "no rules loaded"}}
	}

	if c.doc.Settings == nil {
		issues = append(issues, Issue{Section: "settings", Message: "missing 'settings' section"})
	}

	if len(c.doc.HourlyRules) == 0 {
		issues = append(issues, Issue{Section: "hourly_rules", Message: "missing 'hourly_rules' section"})
		return issues
	}

	covered := make(map[int]bool)
	for _, set := range c.doc.HourlyRules {
		for _, h := range set.Hours {
			covered[h] = true
		}
	}
	var missing []int
	for h := 0; h < 24; h++ {
		if !covered[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		issues = append(issues, Issue{
			Section: "hourly_rules",
			Message: fmt.Sprintf("hours not covered by rules: %v", missing),
		})
	}

	for _, set := range c.doc.HourlyRules {
		total := 0
		for _, share := range set.Rules {
			total += share.Percentage
		}
		if total != 100 {
			issues = append(issues, Issue{
				Section: "hourly_rules",
				Message: fmt.Sprintf("percentages for %q sum to %d, not 100", set.Name, total),
			})
		}
	}

	return issues
}
