/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"io"
	"net/http"

	"github.com/friendsincode/muninn_rotation/internal/events"
	"github.com/friendsincode/muninn_rotation/internal/rules"
)

// handleRulesSummary returns a digest of the active rule document.
func (a *API) handleRulesSummary(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		var cached rules.Summary
		if a.cache.GetRulesSummary(r.Context(), &cached) {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	summary := a.rules.Current().Summarize()

	if a.cache != nil {
		_ = a.cache.SetRulesSummary(r.Context(), summary)
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRulesValidate validates a rule document without activating it. An
// empty body validates the active document instead.
func (a *API) handleRulesValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "body_too_large")
		return
	}

	cfg := a.rules.Current()
	if len(body) > 0 {
		parsed, err := rules.Parse(body)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"valid": false,
				"error": err.Error(),
			})
			return
		}
		cfg = parsed
	}

	issues := cfg.Validate()
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.String())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(issues) == 0,
		"issues": messages,
	})
}

// handleRulesReload re-reads the rule file from disk. A parse failure keeps
// the previous rules active.
func (a *API) handleRulesReload(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.rules.Reload()
	if err != nil {
		a.logger.Error().Err(err).Str("path", a.rules.Path()).Msg("rules reload failed, keeping previous rules")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"reloaded": false,
			"error":    err.Error(),
		})
		return
	}

	if a.cache != nil {
		_ = a.cache.InvalidateRulesSummary(r.Context())
	}
	a.bus.Publish(events.EventRulesReloaded, events.Payload{"path": a.rules.Path()})
	a.logger.Info().Str("path", a.rules.Path()).Msg("rules reloaded")

	issues := cfg.Validate()
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"issues":   messages,
	})
}
