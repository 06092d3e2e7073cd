/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/friendsincode/breakplan/internal/breaks"
	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
)

func workRow(employee, station string) Row {
	return Row{
		EmployeeID: employee,
		Station:    station,
		Role:       "Packer",
		Start:      clock.Ptr(clock.New(6, 0, 0)),
		End:        clock.Ptr(clock.New(14, 30, 0)),
		Type:       models.EntryWork,
	}
}

func breakRule(dept string, size, maxConcurrent int) models.BreakRule {
	r := models.BreakRule{
		DeptID:     dept,
		BreakStart: clock.Ptr(clock.New(8, 0, 0)),
		BreakEnd:   clock.Ptr(clock.New(8, 30, 0)),
		BatchSize:  models.IntPtr(size),
	}
	if maxConcurrent > 0 {
		r.MaxConcurrent = models.IntPtr(maxConcurrent)
	}
	return r
}

func entriesFor(mem *MemoryLogger, step Stage) []LogEntry {
	var out []LogEntry
	for _, e := range mem.Entries() {
		if e.Step == step.String() {
			out = append(out, e)
		}
	}
	return out
}

func TestLoadInputsRejectsEmpty(t *testing.T) {
	res := LoadInputs(LoadInputsParams{}, NewMemoryLogger())
	if res.Success() {
		t.Fatal("expected failure for empty input")
	}
	if !errors.Is(res.Err(), ErrEmptyInput) {
		t.Errorf("Err() = %v, want ErrEmptyInput", res.Err())
	}
}

func TestLoadInputsLogsPerDepartment(t *testing.T) {
	mem := NewMemoryLogger()
	res := LoadInputs(LoadInputsParams{Departments: Departments{
		"Cut-Up":  {workRow("E1", "L1"), workRow("E2", "L1")},
		"Bagging": {},
	}}, mem)
	if !res.Success() {
		t.Fatalf("LoadInputs failed: %s", res.Message())
	}

	logs := entriesFor(mem, StageLoadInputs)
	if len(logs) != 2 {
		t.Fatalf("got %d log lines, want 2", len(logs))
	}
	if logs[0].Department != "Bagging" || logs[0].Status != StatusWarn {
		t.Errorf("empty department should warn: %+v", logs[0])
	}
	if logs[1].Department != "Cut-Up" || logs[1].Status != StatusOK || !strings.Contains(logs[1].Message, "2") {
		t.Errorf("non-empty department should report row count: %+v", logs[1])
	}
}

func TestAssignStations(t *testing.T) {
	input := Departments{"Tray Pack": {workRow("E1", ""), workRow("E2", "Line 4")}}
	res := AssignStations(AssignStationsParams{Inputs: InputBundle{Departments: input}}, NewMemoryLogger())
	if !res.Success() {
		t.Fatal("AssignStations never fails")
	}

	rows := res.Data().Departments["Tray Pack"]
	if rows[0].Station != UnassignedStation {
		t.Errorf("missing station = %q, want %q", rows[0].Station, UnassignedStation)
	}
	if rows[1].Station != "Line 4" {
		t.Errorf("existing station overwritten: %q", rows[1].Station)
	}
	if input["Tray Pack"][0].Station != "" {
		t.Error("AssignStations mutated its input")
	}
}

func TestInsertBreaksAttachesBatches(t *testing.T) {
	rows := []Row{workRow("E5", "L1"), workRow("E3", "L1"), workRow("E1", "L1"), workRow("E4", "L1"), workRow("E2", "L1")}
	assignments := StationAssignment{Departments: Departments{
		"A":     rows,
		"Other": {workRow("Z1", "L9")},
	}}

	res := InsertBreaks(InsertBreaksParams{
		Assignments: assignments,
		Rules:       []models.BreakRule{breakRule("A", 2, 2)},
	}, NewMemoryLogger())
	if !res.Success() {
		t.Fatalf("InsertBreaks failed: %v", res.Errors())
	}

	want := map[string]string{
		"E1": "08:00-08:10", "E2": "08:00-08:10",
		"E3": "08:10-08:20", "E4": "08:10-08:20",
		"E5": "08:20-08:30",
	}
	for _, row := range res.Data().Schedule["A"] {
		if len(row.Breaks) != 1 {
			t.Fatalf("%s has %d breaks, want 1", row.EmployeeID, len(row.Breaks))
		}
		if got := row.Breaks[0].String(); got != want[row.EmployeeID] {
			t.Errorf("%s break = %s, want %s", row.EmployeeID, got, want[row.EmployeeID])
		}
	}

	other := res.Data().Schedule["Other"][0]
	if other.Breaks == nil || len(other.Breaks) != 0 {
		t.Errorf("rows without a rule get an empty break list, got %#v", other.Breaks)
	}
	if rows[0].Breaks != nil {
		t.Error("InsertBreaks mutated its input")
	}
}

func TestInsertBreaksPropagatesSchedulerFailure(t *testing.T) {
	mem := NewMemoryLogger()
	res := InsertBreaks(InsertBreaksParams{
		Assignments: StationAssignment{Departments: Departments{
			"A": {workRow("E1", "L1"), workRow("E2", "L1"), workRow("E3", "L1")},
		}},
		Rules: []models.BreakRule{breakRule("A", 2, 1)},
	}, mem)

	if res.Success() {
		t.Fatal("expected concurrency failure")
	}
	if !errors.Is(res.Err(), breaks.ErrConcurrencyExceeded) {
		t.Errorf("Err() = %v, want ErrConcurrencyExceeded", res.Err())
	}
	if len(res.Errors()) != 1 || !strings.Contains(res.Errors()[0], "department A") {
		t.Errorf("Errors() = %v", res.Errors())
	}

	logs := entriesFor(mem, StageInsertBreaks)
	if len(logs) != 1 || logs[0].Department != "A" || logs[0].Status != StatusFail {
		t.Errorf("expected a single FAIL line for department A, got %+v", logs)
	}
}

func TestValidateOverlapsCollectsAllDepartments(t *testing.T) {
	mem := NewMemoryLogger()
	plan := BreakPlan{Schedule: Departments{
		"Cut-Up":    {workRow("E1", "L1"), workRow("E1", "L1"), workRow("E2", "L1")},
		"Bagging":   {workRow("B1", "L1")},
		"Tray Pack": {workRow("T1", "L1"), workRow("T1", "L3")},
	}}

	res := ValidateOverlaps(ValidateOverlapsParams{Plan: plan}, mem)
	if res.Success() {
		t.Fatal("expected conflicts")
	}
	if !errors.Is(res.Err(), ErrScheduleConflict) {
		t.Errorf("Err() = %v, want ErrScheduleConflict", res.Err())
	}

	errs := res.Errors()
	if len(errs) != 2 {
		t.Fatalf("got %d conflicts, want 2: %v", len(errs), errs)
	}
	cutUp := 0
	for _, e := range errs {
		if strings.HasPrefix(e, "Cut-Up:") {
			cutUp++
		}
	}
	if cutUp != 1 {
		t.Errorf("Cut-Up conflicts = %d, want exactly 1", cutUp)
	}
	if !strings.HasPrefix(errs[1], "Tray Pack:") {
		t.Errorf("conflict in second department missing: %v", errs)
	}

	statuses := map[string]string{}
	for _, e := range entriesFor(mem, StageValidateOverlaps) {
		statuses[e.Department] = e.Status
	}
	if statuses["Bagging"] != StatusOK || statuses["Cut-Up"] != StatusFail || statuses["Tray Pack"] != StatusFail {
		t.Errorf("per-department statuses = %v", statuses)
	}
}

func TestValidateOverlapsPassesPlanThrough(t *testing.T) {
	plan := BreakPlan{Schedule: Departments{"A": {workRow("E1", "L1"), workRow("E2", "L1")}}}
	res := ValidateOverlaps(ValidateOverlapsParams{Plan: plan}, NewMemoryLogger())
	if !res.Success() {
		t.Fatalf("unexpected failure: %v", res.Errors())
	}
	if len(res.Data().Schedule["A"]) != 2 {
		t.Error("plan not passed through")
	}
}

func TestExportMasterLogsEachDepartment(t *testing.T) {
	mem := NewMemoryLogger()
	plan := BreakPlan{Schedule: Departments{"A": {workRow("E1", "L1")}, "B": {}}}

	res := ExportMaster(ExportMasterParams{Plan: plan}, mem)
	if !res.Success() || len(res.Data()) != 2 {
		t.Fatalf("ExportMaster = %+v", res)
	}
	if n := len(entriesFor(mem, StageExportMaster)); n != 2 {
		t.Errorf("got %d export log lines, want 2", n)
	}
}
