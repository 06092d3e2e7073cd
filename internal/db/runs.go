/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"sync"
	"time"

	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/pipeline"
)

// RunLogSink collects schedule log lines as run log records. Pass it to
// RunSchedule (alone or inside a pipeline.MultiLogger) and hand Logs to
// NewRunRecord.
type RunLogSink struct {
	mu   sync.Mutex
	logs []models.RunLog
}

// NewRunLogSink creates an empty sink.
func NewRunLogSink() *RunLogSink {
	return &RunLogSink{}
}

// Log implements pipeline.ScheduleLogger.
func (s *RunLogSink) Log(entry pipeline.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, models.RunLog{
		Sequence:   len(s.logs),
		Timestamp:  entry.Timestamp,
		Department: entry.Department,
		Step:       entry.Step,
		Status:     entry.Status,
		Message:    entry.Message,
	})
}

// Logs returns the collected records.
func (s *RunLogSink) Logs() []models.RunLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RunLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// RunOutcome is everything known about a finished run.
type RunOutcome struct {
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	FinalStage pipeline.Stage
	Result     pipeline.Result[pipeline.Departments]
	Logs       []models.RunLog
}

// NewRunRecord builds the stored form of a run. Rows are only recorded for a
// successful run, departments in sorted order.
func NewRunRecord(outcome RunOutcome) *models.ScheduleRun {
	run := &models.ScheduleRun{
		Status:     models.RunFailed,
		FinalStage: outcome.FinalStage.String(),
		Message:    outcome.Result.Message(),
		Errors:     outcome.Result.Errors(),
		Source:     outcome.Source,
		StartedAt:  outcome.StartedAt,
		FinishedAt: outcome.FinishedAt,
		Logs:       outcome.Logs,
	}
	if !outcome.Result.Success() {
		return run
	}

	run.Status = models.RunSucceeded
	schedule := outcome.Result.Data()
	for _, dept := range schedule.Names() {
		for _, r := range schedule[dept] {
			run.Rows = append(run.Rows, models.RunRow{
				Position:   len(run.Rows),
				DeptID:     dept,
				EmployeeID: r.EmployeeID,
				Name:       r.Name,
				Station:    r.Station,
				Role:       r.Role,
				StartTime:  r.Start,
				EndTime:    r.End,
				Type:       r.Type,
				Breaks:     r.Breaks,
			})
		}
	}
	return run
}
