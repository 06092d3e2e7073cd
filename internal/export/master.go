/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package export consolidates department schedules into the master schedule
// and writes it out.
package export

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/pipeline"
)

// Columns is the master schedule header.
var Columns = []string{"DeptID", "Name", "Station", "StartTime", "EndTime", "Breaks"}

// BreakSeparator joins several break windows in the Breaks column.
const BreakSeparator = "; "

// MasterRow is one line of the master schedule. Missing values are empty.
type MasterRow struct {
	DeptID    string `json:"dept_id"`
	Name      string `json:"name"`
	Station   string `json:"station"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Breaks    string `json:"breaks"`
}

// Record returns the row in Columns order.
func (r MasterRow) Record() []string {
	return []string{r.DeptID, r.Name, r.Station, r.StartTime, r.EndTime, r.Breaks}
}

func (r MasterRow) empty() bool {
	return r.Name == "" && r.Station == "" && r.StartTime == "" && r.EndTime == "" && r.Breaks == ""
}

// FormatBreaks renders break windows for the Breaks column.
func FormatBreaks(windows []models.BreakWindow) string {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, BreakSeparator)
}

// BuildMaster flattens every department into master rows sorted by DeptID,
// Station then Name, compared case-insensitively. Rows with equal keys keep
// department order and their order within the department. Rows with no data
// besides the department are dropped.
func BuildMaster(schedule pipeline.Departments) []MasterRow {
	var rows []MasterRow
	for _, dept := range schedule.Names() {
		for _, r := range schedule[dept] {
			mr := MasterRow{
				DeptID:    dept,
				Name:      r.Name,
				Station:   r.Station,
				StartTime: clock.Format(r.Start),
				EndTime:   clock.Format(r.End),
				Breaks:    FormatBreaks(r.Breaks),
			}
			if mr.empty() {
				continue
			}
			rows = append(rows, mr)
		}
	}

	fold := cases.Fold()
	type keyed struct {
		dept, station, name string
		row                 MasterRow
	}
	sorted := make([]keyed, len(rows))
	for i, r := range rows {
		sorted[i] = keyed{fold.String(r.DeptID), fold.String(r.Station), fold.String(r.Name), r}
	}
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		return cmp.Or(
			strings.Compare(a.dept, b.dept),
			strings.Compare(a.station, b.station),
			strings.Compare(a.name, b.name),
		)
	})

	for i := range sorted {
		rows[i] = sorted[i].row
	}
	return rows
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, rows []MasterRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BreakColumns is the header of a break entry listing.
var BreakColumns = []string{"DeptID", "EmployeeID", "Station", "Role", "StartTime", "EndTime", "Type"}

// WriteBreakEntries writes roster entries, typically the output of the break
// scheduler, as CSV.
func WriteBreakEntries(w io.Writer, entries []models.RosterEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BreakColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.DeptID, e.EmployeeID, e.Station, e.Role,
			clock.Format(e.StartTime), clock.Format(e.EndTime), string(e.Type),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
