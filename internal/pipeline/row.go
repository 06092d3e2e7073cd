/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
)

// UnassignedStation marks rows that arrived without a station.
const UnassignedStation = "UNASSIGNED"

// Row is one schedule record for a department.
type Row struct {
	EmployeeID string           `json:"employee_id"`
	Name       string           `json:"name,omitempty"`
	Station    string           `json:"station"`
	Role       string           `json:"role,omitempty"`
	Start      *clock.TimeOfDay `json:"start,omitempty"`
	End        *clock.TimeOfDay `json:"end,omitempty"`
	Type       models.EntryType `json:"type"`

	// Breaks is nil until InsertBreaks runs.
	Breaks []models.BreakWindow `json:"breaks"`

	// Extra holds input fields that have no dedicated slot.
	Extra map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy so stages never share row state.
func (r Row) Clone() Row {
	out := r
	if r.Start != nil {
		out.Start = clock.Ptr(*r.Start)
	}
	if r.End != nil {
		out.End = clock.Ptr(*r.End)
	}
	if r.Breaks != nil {
		out.Breaks = slices.Clone(r.Breaks)
	}
	if r.Extra != nil {
		out.Extra = maps.Clone(r.Extra)
	}
	return out
}

// Departments maps a department name to its rows.
type Departments map[string][]Row

// Names returns department names in sorted order.
func (d Departments) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d Departments) clone() Departments {
	out := make(Departments, len(d))
	for name, rows := range d {
		copied := make([]Row, len(rows))
		for i, row := range rows {
			copied[i] = row.Clone()
		}
		out[name] = copied
	}
	return out
}

// field aliases accepted from string-keyed input records, lower-cased.
var fieldAliases = map[string]string{
	"employeeid":  "employee",
	"employee_id": "employee",
	"employee":    "employee",
	"name":        "name",
	"station":     "station",
	"role":        "role",
	"starttime":   "start",
	"start_time":  "start",
	"start":       "start",
	"endtime":     "end",
	"end_time":    "end",
	"end":         "end",
	"type":        "type",
}

// RowFromFields converts a string-keyed record into a Row. Keys are matched
// case-insensitively; a non-empty StartTime/EndTime/EmployeeID wins over the
// short Start/End/Employee spelling. Unrecognised keys are kept in Extra.
func RowFromFields(fields map[string]string) (Row, error) {
	var row Row
	primary := map[string]string{}
	fallback := map[string]string{}

	for key, raw := range fields {
		value := strings.TrimSpace(raw)
		lower := strings.ToLower(strings.TrimSpace(key))
		canonical, known := fieldAliases[lower]
		if !known {
			if row.Extra == nil {
				row.Extra = map[string]string{}
			}
			row.Extra[key] = value
			continue
		}
		if lower == canonical {
			fallback[canonical] = value
		} else {
			primary[canonical] = value
		}
	}

	pick := func(canonical string) string {
		if v := primary[canonical]; v != "" {
			return v
		}
		return fallback[canonical]
	}

	row.EmployeeID = pick("employee")
	row.Name = pick("name")
	row.Station = pick("station")
	row.Role = pick("role")
	row.Type = models.NormalizeEntryType(pick("type"))

	if v := pick("start"); v != "" {
		t, err := clock.Parse(v)
		if err != nil {
			return Row{}, fmt.Errorf("start time: %w", err)
		}
		row.Start = &t
	}
	if v := pick("end"); v != "" {
		t, err := clock.Parse(v)
		if err != nil {
			return Row{}, fmt.Errorf("end time: %w", err)
		}
		row.End = &t
	}
	return row, nil
}

// DepartmentsFromFields converts raw per-department records, naming the
// department and row number of the first record that fails to parse.
func DepartmentsFromFields(raw map[string][]map[string]string) (Departments, error) {
	out := make(Departments, len(raw))
	for _, dept := range slices.Sorted(maps.Keys(raw)) {
		records := raw[dept]
		rows := make([]Row, 0, len(records))
		for i, record := range records {
			row, err := RowFromFields(record)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", dept, i+1, err)
			}
			rows = append(rows, row)
		}
		out[dept] = rows
	}
	return out, nil
}
