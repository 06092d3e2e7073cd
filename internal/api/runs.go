/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/breakplan/internal/db"
)

func (a *API) handleRunsList(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	runs, err := a.store.ListRuns(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list schedule runs failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *API) handleRunsGet(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	runID := chi.URLParam(r, "runID")

	run, err := a.store.GetRun(r.Context(), runID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("run_id", runID).Msg("get schedule run failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
