/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/friendsincode/breakplan/internal/clock"
)

// BreakRule configures how a department takes its break.
//
// BatchCount takes precedence over BatchSize when both are set; with neither
// set the whole group breaks in a single batch. MaxConcurrent defaults to the
// resolved batch size.
type BreakRule struct {
	ID            string           `gorm:"type:uuid;primaryKey" json:"id,omitempty"`
	DeptID        string           `gorm:"type:varchar(128);uniqueIndex:idx_break_rules_dept;not null" json:"dept_id"`
	BreakStart    *clock.TimeOfDay `json:"break_start"`
	BreakEnd      *clock.TimeOfDay `json:"break_end"`
	BatchCount    *int             `json:"batch_count,omitempty"`
	BatchSize     *int             `json:"batch_size,omitempty"`
	MaxConcurrent *int             `json:"max_concurrent,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for GORM.
func (BreakRule) TableName() string {
	return "break_rules"
}

// HasWindow reports whether both ends of the break window are set.
func (r BreakRule) HasWindow() bool {
	return r.BreakStart != nil && r.BreakEnd != nil
}

// WindowMinutes returns the window length in minutes, or 0 without a window.
func (r BreakRule) WindowMinutes() float64 {
	if !r.HasWindow() {
		return 0
	}
	return r.BreakEnd.Sub(*r.BreakStart).Minutes()
}

// IntPtr is a convenience for populating optional rule fields.
func IntPtr(v int) *int {
	return &v
}
