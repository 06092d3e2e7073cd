/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/breakplan/internal/audit"
	"github.com/friendsincode/breakplan/internal/models"
)

// handleAuditList returns audit entries, newest first. Filters: action,
// resource_id, since/until (RFC 3339), limit, offset.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_unavailable")
		return
	}

	q := r.URL.Query()
	var filters audit.QueryFilters

	if v := q.Get("action"); v != "" {
		action := models.AuditAction(v)
		filters.Action = &action
	}
	if v := q.Get("resource_id"); v != "" {
		filters.ResourceID = &v
	}
	for key, dest := range map[string]**time.Time{"since": &filters.StartTime, "until": &filters.EndTime} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+key)
			return
		}
		*dest = &t
	}
	for key, dest := range map[string]*int{"limit": &filters.Limit, "offset": &filters.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_"+key)
			return
		}
		*dest = n
	}

	logs, total, err := a.audit.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("query audit logs failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": logs, "total": total})
}
