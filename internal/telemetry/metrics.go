/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "breakplan"

// Metrics holds the Prometheus collectors of the service. It satisfies
// pipeline.Metrics and db.QueryObserver.
type Metrics struct {
	stageDuration  *prometheus.HistogramVec
	stageResults   *prometheus.CounterVec
	breaksInserted prometheus.Counter
	conflicts      prometheus.Counter

	apiRequestDuration   *prometheus.HistogramVec
	apiRequestsTotal     *prometheus.CounterVec
	apiActiveConnections prometheus.Gauge

	dbQueryDuration *prometheus.HistogramVec
	dbErrorsTotal   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, or the
// default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of schedule pipeline stages in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"stage"}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Pipeline stage outcomes by stage and result (success, failure).",
		}, []string{"stage", "result"}),
		breaksInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaks_inserted_total",
			Help:      "Break windows attached to schedule rows.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Duplicate schedule entries detected by overlap validation.",
		}),
		apiRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
		apiRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by method, endpoint and status.",
		}, []string{"method", "endpoint", "status"}),
		apiActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "active_connections",
			Help:      "In-flight HTTP requests.",
		}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database operation duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation", "table"}),
		dbErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "errors_total",
			Help:      "Failed database operations.",
		}, []string{"operation", "table"}),
	}

	reg.MustRegister(
		m.stageDuration,
		m.stageResults,
		m.breaksInserted,
		m.conflicts,
		m.apiRequestDuration,
		m.apiRequestsTotal,
		m.apiActiveConnections,
		m.dbQueryDuration,
		m.dbErrorsTotal,
	)
	return m
}

// ObserveStage records the duration and outcome of one stage.
func (m *Metrics) ObserveStage(stage string, seconds float64, success bool) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
	result := "success"
	if !success {
		result = "failure"
	}
	m.stageResults.WithLabelValues(stage, result).Inc()
}

// AddBreaksInserted counts newly attached break windows.
func (m *Metrics) AddBreaksInserted(n int) {
	if n > 0 {
		m.breaksInserted.Add(float64(n))
	}
}

// AddConflicts counts detected schedule conflicts.
func (m *Metrics) AddConflicts(n int) {
	if n > 0 {
		m.conflicts.Add(float64(n))
	}
}

// ObserveQuery records one database operation.
func (m *Metrics) ObserveQuery(operation, table string, seconds float64, failed bool) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(seconds)
	if failed {
		m.dbErrorsTotal.WithLabelValues(operation, table).Inc()
	}
}

// Handler exposes the metrics endpoint for gatherer, or the default gatherer
// when nil.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
