/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/breakplan/internal/api"
	"github.com/friendsincode/breakplan/internal/audit"
	"github.com/friendsincode/breakplan/internal/cache"
	"github.com/friendsincode/breakplan/internal/config"
	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/eventbus"
	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/export"
	"github.com/friendsincode/breakplan/internal/logbuffer"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/roster"
	"github.com/friendsincode/breakplan/internal/storage"
	"github.com/friendsincode/breakplan/internal/telemetry"
)

// eventBus is satisfied by both the in-process bus and the NATS bus.
type eventBus interface {
	events.Publisher
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
}

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	logBuffer  *logbuffer.Buffer
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	db    *gorm.DB
	store *db.Store
	cache *cache.Cache
	bus   eventBus
	api   *api.API
	audit *audit.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New connects every dependency and builds the HTTP server. logBuf may be nil,
// in which case the logs endpoint answers 503.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		logBuffer: logBuf,
		router:    newRouter(metrics),
		registry:  registry,
		metrics:   metrics,
	}

	if err := srv.initDependencies(context.Background()); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func newRouter(metrics *telemetry.Metrics) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("breakplan-api"))
	router.Use(metrics.Middleware)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies(ctx context.Context) error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database, s.metrics); err != nil {
		return fmt.Errorf("register db callbacks: %w", err)
	}
	s.store = db.NewStore(database, s.logger)

	s.cache = cache.Disabled()
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		ruleCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = ruleCache
			s.DeferClose(ruleCache.Close)
		}
	}

	if s.cfg.RulesFile != "" {
		rules, err := roster.LoadRules(s.cfg.RulesFile)
		if err != nil {
			return fmt.Errorf("load rules file: %w", err)
		}
		if err := SeedRules(ctx, s.store, rules, s.cache); err != nil {
			return err
		}
	}

	natsCfg := eventbus.DefaultNATSConfig()
	natsCfg.URL = s.cfg.NATSURL
	natsBus, err := eventbus.NewNATSBus(natsCfg, s.logger)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.bus = natsBus
	s.DeferClose(natsBus.Close)

	objects, err := storage.FromConfig(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("open export storage: %w", err)
	}

	s.audit = audit.NewService(database, s.bus, s.logger)

	s.api = api.New(api.Deps{
		Store:    s.store,
		Cache:    s.cache,
		Bus:      s.bus,
		Metrics:  s.metrics,
		Exporter: export.NewExporter(objects, s.logger),
		Audit:    s.audit,
		Logs:     s.logBuffer,
	}, s.logger)

	return nil
}

// RuleInvalidator drops cached break rules.
type RuleInvalidator interface {
	InvalidateRules(ctx context.Context, deptIDs ...string) error
}

// SeedRules creates or replaces stored rules and drops their cached copies,
// so the next run reads the seeded rules.
func SeedRules(ctx context.Context, store *db.Store, rules []models.BreakRule, cached RuleInvalidator) error {
	if err := store.SeedRules(ctx, rules); err != nil {
		return err
	}
	deptIDs := make([]string, 0, len(rules))
	for _, rule := range rules {
		deptIDs = append(deptIDs, rule.DeptID)
	}
	if err := cached.InvalidateRules(ctx, deptIDs...); err != nil {
		return fmt.Errorf("invalidate cached rules: %w", err)
	}
	return nil
}

// HTTPServer returns the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background workers and releases dependencies in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers fn to run on Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Rule changes made on other nodes arrive through the bus.
	if s.cache.IsAvailable() {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runRunEventLogger(ctx)
	}()

	if s.audit != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.audit.Start(ctx)
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

// runCacheInvalidationListener drops cached rules when a rule changes.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	updated := s.bus.Subscribe(events.EventRulesUpdated)
	deleted := s.bus.Subscribe(events.EventRulesDeleted)
	defer func() {
		s.bus.Unsubscribe(events.EventRulesUpdated, updated)
		s.bus.Unsubscribe(events.EventRulesDeleted, deleted)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload, reason string) {
		deptID, _ := payload["dept_id"].(string)
		if deptID == "" {
			return
		}
		s.logger.Debug().Str("dept_id", deptID).Str("reason", reason).Msg("invalidating break rule cache")
		if err := s.cache.InvalidateRule(ctx, deptID); err != nil {
			s.logger.Warn().Err(err).Str("dept_id", deptID).Msg("break rule cache invalidation failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload, ok := <-updated:
			if !ok {
				return
			}
			invalidate(payload, "rule updated")
		case payload, ok := <-deleted:
			if !ok {
				return
			}
			invalidate(payload, "rule deleted")
		}
	}
}

// runRunEventLogger writes one line per finished schedule run.
func (s *Server) runRunEventLogger(ctx context.Context) {
	completed := s.bus.Subscribe(events.EventRunCompleted)
	failed := s.bus.Subscribe(events.EventRunFailed)
	defer func() {
		s.bus.Unsubscribe(events.EventRunCompleted, completed)
		s.bus.Unsubscribe(events.EventRunFailed, failed)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-completed:
			if !ok {
				return
			}
			s.logger.Info().Interface("run_id", payload["run_id"]).Interface("rows", payload["rows"]).Msg("schedule run completed")
		case payload, ok := <-failed:
			if !ok {
				return
			}
			s.logger.Warn().Interface("run_id", payload["run_id"]).Interface("stage", payload["stage"]).Msg("schedule run failed")
		}
	}
}

func (s *Server) configureRoutes() {
	s.router.Handle("/metrics", telemetry.Handler(s.registry))
	s.api.Routes(s.router)
}
