/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/friendsincode/breakplan/internal/clock"
)

// RunStatus is the terminal outcome of a schedule run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ScheduleRun records one pipeline execution.
type ScheduleRun struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Status     RunStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	FinalStage string    `gorm:"type:varchar(32)" json:"final_stage"`
	Message    string    `gorm:"type:text" json:"message"`
	Errors     []string  `gorm:"type:text;serializer:json" json:"errors,omitempty"`
	Source     string    `gorm:"type:varchar(64)" json:"source,omitempty"` // cli, api
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Rows []RunRow `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"rows,omitempty"`
	Logs []RunLog `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"logs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (ScheduleRun) TableName() string {
	return "schedule_runs"
}

// RunRow is one exported schedule row of a successful run.
type RunRow struct {
	ID         string           `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      string           `gorm:"type:uuid;index:idx_run_rows_run;not null" json:"run_id"`
	Position   int              `gorm:"not null" json:"position"`
	DeptID     string           `gorm:"type:varchar(128);index" json:"dept_id"`
	EmployeeID string           `gorm:"type:varchar(128)" json:"employee_id"`
	Name       string           `gorm:"type:varchar(255)" json:"name"`
	Station    string           `gorm:"type:varchar(128)" json:"station"`
	Role       string           `gorm:"type:varchar(128)" json:"role"`
	StartTime  *clock.TimeOfDay `json:"start_time,omitempty"`
	EndTime    *clock.TimeOfDay `json:"end_time,omitempty"`
	Type       EntryType        `gorm:"type:varchar(16)" json:"type"`
	Breaks     []BreakWindow    `gorm:"type:text;serializer:json" json:"breaks"`
}

// TableName returns the table name for GORM.
func (RunRow) TableName() string {
	return "schedule_run_rows"
}

// RunLog is one (timestamp, department, step, status, message) line from a run.
type RunLog struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      string    `gorm:"type:uuid;index:idx_run_logs_run;not null" json:"run_id"`
	Sequence   int       `gorm:"not null" json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	Department string    `gorm:"type:varchar(128)" json:"department"`
	Step       string    `gorm:"type:varchar(32)" json:"step"`
	Status     string    `gorm:"type:varchar(8)" json:"status"`
	Message    string    `gorm:"type:text" json:"message"`
}

// TableName returns the table name for GORM.
func (RunLog) TableName() string {
	return "schedule_run_logs"
}
