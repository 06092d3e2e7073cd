/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/breaks"
	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
)

// Stage names a pipeline state.
type Stage string

const (
	StageIdle             Stage = "Idle"
	StageLoadInputs       Stage = "LoadInputs"
	StageAssignStations   Stage = "AssignStations"
	StageInsertBreaks     Stage = "InsertBreaks"
	StageValidateOverlaps Stage = "ValidateOverlaps"
	StageExportMaster     Stage = "ExportMaster"
	StageDone             Stage = "Done"
	StageFailed           Stage = "Failed"
)

func (s Stage) String() string { return string(s) }

var (
	// ErrEmptyInput indicates a run was started without any department data.
	ErrEmptyInput = errors.New("no department input provided")

	// ErrScheduleConflict indicates duplicate (employee, start, end) rows.
	ErrScheduleConflict = errors.New("schedule conflict")
)

// InputBundle is the validated input of a run.
type InputBundle struct {
	Departments Departments
}

// StationAssignment holds rows after every row has a station.
type StationAssignment struct {
	Departments Departments
}

// BreakPlan holds rows with break data attached.
type BreakPlan struct {
	Schedule Departments
}

// LoadInputsParams is the input of LoadInputs.
type LoadInputsParams struct {
	Departments Departments
}

// AssignStationsParams is the input of AssignStations.
type AssignStationsParams struct {
	Inputs InputBundle
}

// InsertBreaksParams is the input of InsertBreaks. A nil Scheduler uses a
// quiet default.
type InsertBreaksParams struct {
	Assignments StationAssignment
	Rules       []models.BreakRule
	Scheduler   *breaks.Scheduler
}

// ValidateOverlapsParams is the input of ValidateOverlaps.
type ValidateOverlapsParams struct {
	Plan BreakPlan
}

// ExportMasterParams is the input of ExportMaster.
type ExportMasterParams struct {
	Plan BreakPlan
}

func newStageLog(logger ScheduleLogger, stage Stage) stageLog {
	if logger == nil {
		logger = NewConsoleLogger(nil)
	}
	return stageLog{sink: logger, step: stage, now: time.Now}
}

// LoadInputs checks that at least one department was supplied.
func LoadInputs(params LoadInputsParams, logger ScheduleLogger) Result[InputBundle] {
	if len(params.Departments) == 0 {
		return FailWith[InputBundle](ErrEmptyInput, "no department input provided.")
	}

	log := newStageLog(logger, StageLoadInputs)
	for _, dept := range params.Departments.Names() {
		rows := params.Departments[dept]
		if len(rows) == 0 {
			log.log(dept, StatusWarn, "department input is empty")
		} else {
			log.log(dept, StatusOK, fmt.Sprintf("read %d input rows", len(rows)))
		}
	}

	return Ok("inputs loaded.", InputBundle{Departments: params.Departments.clone()})
}

// AssignStations gives every row without a station the UNASSIGNED placeholder.
func AssignStations(params AssignStationsParams, logger ScheduleLogger) Result[StationAssignment] {
	log := newStageLog(logger, StageAssignStations)
	assigned := params.Inputs.Departments.clone()

	for _, dept := range assigned.Names() {
		rows := assigned[dept]
		for i := range rows {
			if rows[i].Station == "" {
				rows[i].Station = UnassignedStation
			}
		}
		log.log(dept, StatusOK, fmt.Sprintf("assigned %d rows", len(rows)))
	}

	return Ok("stations assigned.", StationAssignment{Departments: assigned})
}

type rowRef struct {
	dept  string
	index int
}

// flatten converts rows to roster entries in department order. Entry Ref i
// points back at refs[i].
func (d Departments) flatten() ([]models.RosterEntry, []rowRef) {
	var (
		entries []models.RosterEntry
		refs    []rowRef
	)
	for _, dept := range d.Names() {
		for i, row := range d[dept] {
			entries = append(entries, models.RosterEntry{
				DeptID:     dept,
				EmployeeID: row.EmployeeID,
				Station:    row.Station,
				Role:       row.Role,
				StartTime:  row.Start,
				EndTime:    row.End,
				Type:       row.Type,
				Ref:        len(refs),
			})
			refs = append(refs, rowRef{dept: dept, index: i})
		}
	}
	return entries, refs
}

// Entries converts every row to a roster entry, departments in sorted order.
func (d Departments) Entries() []models.RosterEntry {
	entries, _ := d.flatten()
	return entries
}

// InsertBreaks makes sure every row has a break list and fills it from the
// break scheduler. A scheduler error fails the stage and no breaks are kept.
func InsertBreaks(params InsertBreaksParams, logger ScheduleLogger) Result[BreakPlan] {
	log := newStageLog(logger, StageInsertBreaks)
	scheduler := params.Scheduler
	if scheduler == nil {
		scheduler = breaks.New(zerolog.Nop())
	}

	schedule := params.Assignments.Departments.clone()
	for _, rows := range schedule {
		for i := range rows {
			if rows[i].Breaks == nil {
				rows[i].Breaks = []models.BreakWindow{}
			}
		}
	}
	entries, refs := schedule.flatten()

	allocations, err := scheduler.Allocate(params.Rules, entries)
	if err != nil {
		dept, ok := breaks.Department(err)
		if !ok {
			dept = "*"
		}
		log.log(dept, StatusFail, err.Error())
		return FailWith[BreakPlan](err, "break insertion failed.", err.Error())
	}

	inserted := map[string]int{}
	for _, a := range allocations {
		for _, member := range a.Batch.Members {
			ref := refs[member.Ref]
			row := &schedule[ref.dept][ref.index]
			row.Breaks = append(row.Breaks, models.BreakWindow{
				Batch: a.Batch.Index,
				Start: a.Batch.Start,
				End:   a.Batch.End,
			})
			inserted[ref.dept]++
		}
	}

	for _, dept := range schedule.Names() {
		log.log(dept, StatusOK, fmt.Sprintf("inserted %d breaks across %d rows", inserted[dept], len(schedule[dept])))
	}

	return Ok("breaks inserted.", BreakPlan{Schedule: schedule})
}

type slotKey struct {
	employee string
	hasStart bool
	start    clock.TimeOfDay
	hasEnd   bool
	end      clock.TimeOfDay
}

func keyOf(row Row) slotKey {
	k := slotKey{employee: row.EmployeeID}
	if row.Start != nil {
		k.hasStart, k.start = true, *row.Start
	}
	if row.End != nil {
		k.hasEnd, k.end = true, *row.End
	}
	return k
}

// ValidateOverlaps flags every repeated (employee, start, end) row. All
// departments are checked before the stage reports failure.
func ValidateOverlaps(params ValidateOverlapsParams, logger ScheduleLogger) Result[BreakPlan] {
	log := newStageLog(logger, StageValidateOverlaps)
	var conflicts []string

	for _, dept := range params.Plan.Schedule.Names() {
		seen := map[slotKey]bool{}
		found := 0
		for _, row := range params.Plan.Schedule[dept] {
			key := keyOf(row)
			if seen[key] {
				found++
				conflicts = append(conflicts, fmt.Sprintf("%s: duplicate schedule entry (%s, %s, %s)",
					dept, row.EmployeeID, clock.Format(row.Start), clock.Format(row.End)))
			}
			seen[key] = true
		}

		if found > 0 {
			log.log(dept, StatusFail, fmt.Sprintf("detected %d schedule conflicts", found))
		} else {
			log.log(dept, StatusOK, "no schedule conflicts detected")
		}
	}

	if len(conflicts) > 0 {
		return FailWith[BreakPlan](ErrScheduleConflict, "schedule conflict check failed.", conflicts...)
	}
	return Ok("schedule conflict check passed.", params.Plan)
}

// ExportMaster hands the final schedule back for the caller to persist.
func ExportMaster(params ExportMasterParams, logger ScheduleLogger) Result[Departments] {
	log := newStageLog(logger, StageExportMaster)
	for _, dept := range params.Plan.Schedule.Names() {
		log.log(dept, StatusOK, "export data prepared")
	}
	return Ok("master export data ready.", params.Plan.Schedule)
}
