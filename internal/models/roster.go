/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"

	"github.com/friendsincode/breakplan/internal/clock"
)

// EntryType distinguishes work records from break records on a roster.
type EntryType string

const (
	EntryWork  EntryType = "Work"
	EntryBreak EntryType = "Break"
)

// IsBreak compares case-insensitively; anything that is not a break counts as work.
func (t EntryType) IsBreak() bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(EntryBreak))
}

// NormalizeEntryType maps empty input to Work and canonicalizes the two known spellings.
func NormalizeEntryType(raw string) EntryType {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return EntryWork
	case strings.EqualFold(raw, string(EntryBreak)):
		return EntryBreak
	case strings.EqualFold(raw, string(EntryWork)):
		return EntryWork
	default:
		return EntryType(raw)
	}
}

// RosterEntry is one employee's work or break record for a department.
type RosterEntry struct {
	DeptID     string           `json:"dept_id"`
	EmployeeID string           `json:"employee_id"`
	Station    string           `json:"station"`
	Role       string           `json:"role"`
	StartTime  *clock.TimeOfDay `json:"start_time,omitempty"`
	EndTime    *clock.TimeOfDay `json:"end_time,omitempty"`
	Type       EntryType        `json:"type"`

	// Ref is an opaque caller reference copied onto breaks generated for this entry.
	Ref int `json:"-"`
}

// HasWindow reports whether both start and end are set.
func (e RosterEntry) HasWindow() bool {
	return e.StartTime != nil && e.EndTime != nil
}

// BreakWindow is a break attached to a schedule row.
type BreakWindow struct {
	Batch int             `json:"batch"`
	Start clock.TimeOfDay `json:"start"`
	End   clock.TimeOfDay `json:"end"`
}

// String renders the window as "HH:MM-HH:MM".
func (w BreakWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}
