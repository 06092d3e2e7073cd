/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package pipeline runs the five-stage schedule pipeline: load inputs, assign
// stations, insert breaks, validate overlaps and export the master schedule.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/friendsincode/breakplan/internal/breaks"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/telemetry"
)

const tracerName = "breakplan/pipeline"

// RunParams is the input of a full schedule run.
type RunParams struct {
	Departments Departments
	Rules       []models.BreakRule

	// Log receives per-department status lines; nil writes to the console.
	Log ScheduleLogger
}

// Runner executes the stages in order and stops at the first failure.
type Runner struct {
	scheduler *breaks.Scheduler
	metrics   Metrics
	logger    zerolog.Logger

	mu    sync.Mutex
	state Stage
}

// NewRunner creates a runner. A nil metrics sink is replaced by NopMetrics.
func NewRunner(scheduler *breaks.Scheduler, metrics Metrics, logger zerolog.Logger) *Runner {
	if scheduler == nil {
		scheduler = breaks.New(logger)
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Runner{
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger.With().Str("component", "schedule_runner").Logger(),
		state:     StageIdle,
	}
}

// State returns the last state the runner reached.
func (r *Runner) State() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) transition(next Stage) {
	r.mu.Lock()
	prev := r.state
	r.state = next
	r.mu.Unlock()
	r.logger.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("pipeline transition")
}

func runStage[T any](ctx context.Context, r *Runner, stage Stage, fn func() Result[T]) Result[T] {
	r.transition(stage)
	_, span := telemetry.StartSpan(ctx, tracerName, stage.String())
	defer span.End()

	started := time.Now()
	res := fn()
	r.metrics.ObserveStage(stage.String(), time.Since(started).Seconds(), res.Success())

	if !res.Success() {
		span.SetStatus(codes.Error, res.Message())
		telemetry.RecordError(span, res.Err())
	}
	return res
}

func stepMessage(stage Stage, res interface{ Message() string }) string {
	return stage.String() + ": " + res.Message()
}

// abort ends the run at a failed stage. The error list is every step message
// so far followed by the failed stage's own errors.
func abort[T any](r *Runner, steps []string, res Result[T]) Result[Departments] {
	r.transition(StageFailed)
	errs := append(append([]string{}, steps...), res.Errors()...)
	r.logger.Warn().Strs("errors", errs).Msg("schedule run failed")
	return FailWith[Departments](res.Err(), "schedule run failed.", errs...)
}

// RunSchedule executes LoadInputs, AssignStations, InsertBreaks,
// ValidateOverlaps and ExportMaster in that order. ctx carries tracing only.
func (r *Runner) RunSchedule(ctx context.Context, params RunParams) Result[Departments] {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "RunSchedule")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"departments": len(params.Departments),
		"rules":       len(params.Rules),
	})

	sink := params.Log
	if sink == nil {
		sink = NewConsoleLogger(nil)
	}
	r.transition(StageIdle)
	var steps []string

	load := runStage(ctx, r, StageLoadInputs, func() Result[InputBundle] {
		return LoadInputs(LoadInputsParams{Departments: params.Departments}, sink)
	})
	steps = append(steps, stepMessage(StageLoadInputs, load))
	if !load.Success() {
		return abort(r, steps, load)
	}

	assign := runStage(ctx, r, StageAssignStations, func() Result[StationAssignment] {
		return AssignStations(AssignStationsParams{Inputs: load.Data()}, sink)
	})
	steps = append(steps, stepMessage(StageAssignStations, assign))
	if !assign.Success() {
		return abort(r, steps, assign)
	}

	insert := runStage(ctx, r, StageInsertBreaks, func() Result[BreakPlan] {
		return InsertBreaks(InsertBreaksParams{
			Assignments: assign.Data(),
			Rules:       params.Rules,
			Scheduler:   r.scheduler,
		}, sink)
	})
	steps = append(steps, stepMessage(StageInsertBreaks, insert))
	if !insert.Success() {
		return abort(r, steps, insert)
	}
	r.metrics.AddBreaksInserted(countBreaks(insert.Data().Schedule))

	validate := runStage(ctx, r, StageValidateOverlaps, func() Result[BreakPlan] {
		return ValidateOverlaps(ValidateOverlapsParams{Plan: insert.Data()}, sink)
	})
	steps = append(steps, stepMessage(StageValidateOverlaps, validate))
	if !validate.Success() {
		r.metrics.AddConflicts(len(validate.Errors()))
		return abort(r, steps, validate)
	}

	export := runStage(ctx, r, StageExportMaster, func() Result[Departments] {
		return ExportMaster(ExportMasterParams{Plan: validate.Data()}, sink)
	})
	steps = append(steps, stepMessage(StageExportMaster, export))
	if !export.Success() {
		return abort(r, steps, export)
	}

	r.transition(StageDone)
	summary := strings.Join(steps, " | ")
	r.logger.Info().Int("departments", len(export.Data())).Msg("schedule run complete")
	return Ok("schedule run complete: "+summary, export.Data())
}

func countBreaks(schedule Departments) int {
	n := 0
	for _, rows := range schedule {
		for _, row := range rows {
			n += len(row.Breaks)
		}
	}
	return n
}
