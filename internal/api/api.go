/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes break scheduling, schedule runs and stored break rules over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/audit"
	"github.com/friendsincode/breakplan/internal/cache"
	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/export"
	"github.com/friendsincode/breakplan/internal/logbuffer"
	"github.com/friendsincode/breakplan/internal/pipeline"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// Deps are the services the API uses. Store, Exporter, Audit and Logs are optional;
// without a store runs are not persisted and rule endpoints answer 503.
type Deps struct {
	Store    *db.Store
	Cache    *cache.Cache
	Bus      events.Publisher
	Metrics  pipeline.Metrics
	Exporter *export.Exporter
	Audit    *audit.Service
	Logs     *logbuffer.Buffer
}

// API exposes HTTP handlers.
type API struct {
	store    *db.Store
	cache    *cache.Cache
	bus      events.Publisher
	metrics  pipeline.Metrics
	exporter *export.Exporter
	audit    *audit.Service
	logs     *logbuffer.Buffer
	logger   zerolog.Logger
}

// New creates the API router wrapper.
func New(deps Deps, logger zerolog.Logger) *API {
	if deps.Cache == nil {
		deps.Cache = cache.Disabled()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}
	if deps.Metrics == nil {
		deps.Metrics = pipeline.NopMetrics{}
	}
	return &API{
		store:    deps.Store,
		cache:    deps.Cache,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		exporter: deps.Exporter,
		audit:    deps.Audit,
		logs:     deps.Logs,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers API routes on the router.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/schedule/run", a.handleScheduleRun)
		r.Post("/breaks", a.handleBreaks)

		r.Route("/break-rules", func(r chi.Router) {
			r.Get("/", a.handleRulesList)
			r.Route("/{deptID}", func(r chi.Router) {
				r.Get("/", a.handleRulesGet)
				r.Put("/", a.handleRulesPut)
				r.Delete("/", a.handleRulesDelete)
			})
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", a.handleRunsList)
			r.Get("/{runID}", a.handleRunsGet)
		})

		r.Get("/audit", a.handleAuditList)
		r.Get("/logs", a.handleLogs)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"store":  a.store != nil,
		"cache":  a.cache.IsAvailable(),
	})
}

// publish sends an event with the request's client details attached.
func (a *API) publish(r *http.Request, eventType events.EventType, payload events.Payload) {
	payload["ip_address"] = r.RemoteAddr
	payload["user_agent"] = r.UserAgent()
	a.bus.Publish(eventType, payload)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
