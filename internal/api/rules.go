/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/breakplan/internal/breaks"
	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/models"
)

func (a *API) requireStore(w http.ResponseWriter) bool {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return false
	}
	return true
}

func (a *API) handleRulesList(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	rules, err := a.storedRules(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list break rules failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if rules == nil {
		rules = []models.BreakRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (a *API) handleRulesGet(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	deptID := chi.URLParam(r, "deptID")

	if rule, ok := a.cache.GetRule(r.Context(), deptID); ok {
		writeJSON(w, http.StatusOK, rule)
		return
	}

	rule, err := a.store.GetRule(r.Context(), deptID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("dept_id", deptID).Msg("get break rule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := a.cache.SetRule(r.Context(), rule); err != nil {
		a.logger.Debug().Err(err).Msg("cache break rule failed")
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleRulesPut creates or replaces the rule of a department. The rule must
// have a positive break window.
func (a *API) handleRulesPut(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	deptID := chi.URLParam(r, "deptID")

	var rule models.BreakRule
	if err := decodeBody(w, r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if rule.DeptID != "" && rule.DeptID != deptID {
		writeError(w, http.StatusBadRequest, "dept_id_mismatch")
		return
	}
	rule.DeptID = deptID
	rule.ID = ""

	if err := breaks.ValidateRule(rule); err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "configuration_error", err.Error())
		return
	}

	if err := a.store.UpsertRule(r.Context(), &rule); err != nil {
		a.logger.Error().Err(err).Str("dept_id", deptID).Msg("save break rule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := a.cache.InvalidateRule(r.Context(), deptID); err != nil {
		a.logger.Warn().Err(err).Str("dept_id", deptID).Msg("invalidate break rule cache failed")
	}

	a.publish(r, events.EventRulesUpdated, events.Payload{"dept_id": deptID, "rule_id": rule.ID})
	writeJSON(w, http.StatusOK, rule)
}

func (a *API) handleRulesDelete(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	deptID := chi.URLParam(r, "deptID")

	err := a.store.DeleteRule(r.Context(), deptID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("dept_id", deptID).Msg("delete break rule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := a.cache.InvalidateRule(r.Context(), deptID); err != nil {
		a.logger.Warn().Err(err).Str("dept_id", deptID).Msg("invalidate break rule cache failed")
	}

	a.publish(r, events.EventRulesDeleted, events.Payload{"dept_id": deptID})
	w.WriteHeader(http.StatusNoContent)
}
