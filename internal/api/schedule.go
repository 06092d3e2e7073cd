/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/friendsincode/breakplan/internal/breaks"
	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/export"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/pipeline"
	"github.com/friendsincode/breakplan/internal/roster"
)

// scheduleRunRequest is the body of a schedule run. Rules default to the
// stored rules when omitted.
type scheduleRunRequest struct {
	Departments map[string][]map[string]any `json:"departments"`
	Rules       []models.BreakRule          `json:"rules"`
}

type scheduleRunResponse struct {
	Success  bool                 `json:"success"`
	RunID    string               `json:"run_id,omitempty"`
	Message  string               `json:"message"`
	Errors   []string             `json:"errors,omitempty"`
	Schedule pipeline.Departments `json:"schedule,omitempty"`
	Master   []export.MasterRow   `json:"master,omitempty"`
	Copy     string               `json:"copy,omitempty"`
}

// breaksRequest is the body of a standalone break computation.
type breaksRequest struct {
	Entries []models.RosterEntry `json:"entries"`
	Rules   []models.BreakRule   `json:"rules"`
}

// handleScheduleRun runs the full pipeline over the posted roster.
func (a *API) handleScheduleRun(w http.ResponseWriter, r *http.Request) {
	var req scheduleRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	fields, err := roster.Fields(req.Departments)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_roster", err.Error())
		return
	}
	departments, err := pipeline.DepartmentsFromFields(fields)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_roster", err.Error())
		return
	}

	rules := req.Rules
	if rules == nil {
		if rules, err = a.storedRules(r.Context()); err != nil {
			a.logger.Error().Err(err).Msg("load stored break rules failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}

	sink := db.NewRunLogSink()
	runner := pipeline.NewRunner(breaks.New(a.logger), a.metrics, a.logger)
	started := time.Now()
	res := runner.RunSchedule(r.Context(), pipeline.RunParams{
		Departments: departments,
		Rules:       rules,
		Log:         pipeline.MultiLogger{sink, pipeline.NewZerologLogger(a.logger)},
	})

	resp := scheduleRunResponse{
		Success: res.Success(),
		Message: res.Message(),
		Errors:  res.Errors(),
	}

	if a.store != nil {
		record := db.NewRunRecord(db.RunOutcome{
			Source:     "api",
			StartedAt:  started,
			FinishedAt: time.Now(),
			FinalStage: runner.State(),
			Result:     res,
			Logs:       sink.Logs(),
		})
		if err := a.store.SaveRun(r.Context(), record); err != nil {
			a.logger.Error().Err(err).Msg("persist schedule run failed")
		} else {
			resp.RunID = record.ID
		}
	}

	if !res.Success() {
		a.publish(r, events.EventRunFailed, events.Payload{
			"run_id": resp.RunID,
			"stage":  runner.State().String(),
			"errors": resp.Errors,
		})
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	resp.Schedule = res.Data()
	resp.Master = export.BuildMaster(resp.Schedule)
	if a.exporter != nil {
		location, err := a.exporter.SaveCopy(r.Context(), resp.Master)
		if err != nil {
			a.logger.Error().Err(err).Msg("save master schedule copy failed")
		} else {
			resp.Copy = location
		}
	}

	a.publish(r, events.EventRunCompleted, events.Payload{
		"run_id":      resp.RunID,
		"departments": len(resp.Schedule),
		"rows":        len(resp.Master),
		"copy":        resp.Copy,
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleBreaks computes break entries for a roster without running the pipeline.
func (a *API) handleBreaks(w http.ResponseWriter, r *http.Request) {
	var req breaksRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	rules := req.Rules
	if rules == nil {
		var err error
		if rules, err = a.storedRules(r.Context()); err != nil {
			a.logger.Error().Err(err).Msg("load stored break rules failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}

	planned, err := breaks.New(a.logger).Schedule(rules, req.Entries)
	switch {
	case errors.Is(err, breaks.ErrConfiguration):
		writeErrorMessage(w, http.StatusUnprocessableEntity, "configuration_error", err.Error())
		return
	case errors.Is(err, breaks.ErrConcurrencyExceeded):
		writeErrorMessage(w, http.StatusUnprocessableEntity, "concurrency_exceeded", err.Error())
		return
	case err != nil:
		a.logger.Error().Err(err).Msg("break scheduling failed")
		writeError(w, http.StatusInternalServerError, "schedule_error")
		return
	}

	if planned == nil {
		planned = []models.RosterEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"breaks": planned})
}

// storedRules returns the persisted rules, cached when possible. Without a
// store there are no rules.
func (a *API) storedRules(ctx context.Context) ([]models.BreakRule, error) {
	if a.store == nil {
		return nil, nil
	}
	if rules, ok := a.cache.GetRules(ctx); ok {
		return rules, nil
	}
	rules, err := a.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.cache.SetRules(ctx, rules); err != nil {
		a.logger.Debug().Err(err).Msg("cache break rules failed")
	}
	return rules, nil
}
