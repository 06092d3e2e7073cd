/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/friendsincode/breakplan/internal/clock"
)

const rulesYAML = `
rules:
  - dept_id: Cut-Up
    break_start: "08:00"
    break_end: "08:30"
    batch_size: 2
    max_concurrent: 2
  - dept_id: Bagging
    break_start: 0.375
    break_end: "09:30:00"
    batch_count: 3
  - dept_id: Tray Pack
`

func TestDecodeRules(t *testing.T) {
	rules, err := DecodeRules(strings.NewReader(rulesYAML))
	if err != nil {
		t.Fatalf("DecodeRules: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(rules))
	}

	cut := rules[0]
	if cut.DeptID != "Cut-Up" || *cut.BreakStart != clock.New(8, 0, 0) || *cut.BatchSize != 2 || *cut.MaxConcurrent != 2 {
		t.Errorf("Cut-Up rule = %+v", cut)
	}
	if cut.BatchCount != nil {
		t.Error("batch_count should be unset")
	}

	bag := rules[1]
	if *bag.BreakStart != clock.New(9, 0, 0) || *bag.BreakEnd != clock.New(9, 30, 0) || *bag.BatchCount != 3 {
		t.Errorf("Bagging rule = %+v", bag)
	}

	if rules[2].HasWindow() {
		t.Error("Tray Pack rule should have no window")
	}
}

func TestDecodeRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing dept", doc: "rules:\n  - break_start: \"08:00\"\n"},
		{name: "duplicate dept", doc: "rules:\n  - dept_id: A\n  - dept_id: A\n"},
		{name: "bad time", doc: "rules:\n  - dept_id: A\n    break_start: noon\n"},
		{name: "unknown field", doc: "rules:\n  - dept_id: A\n    batch_sise: 2\n"},
		{name: "non-scalar time", doc: "rules:\n  - dept_id: A\n    break_start: [1, 2]\n"},
		{name: "nan time", doc: "rules:\n  - dept_id: A\n    break_start: .nan\n"},
		{name: "infinite time", doc: "rules:\n  - dept_id: A\n    break_end: -.inf\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRules(strings.NewReader(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecodeRulesEmpty(t *testing.T) {
	rules, err := DecodeRules(strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeRules: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules", len(rules))
	}
}

const rosterYAML = `
departments:
  Cut-Up:
    - EmployeeID: 101
      Name: Ann Lee
      Station: L1
      StartTime: "06:00"
      EndTime: "14:30"
      Shift: A
    - Employee: E2
      Start: 0.25
      End: "14:30"
      Type: break
  Bagging: []
`

func TestDecodeRoster(t *testing.T) {
	depts, err := DecodeRoster(strings.NewReader(rosterYAML))
	if err != nil {
		t.Fatalf("DecodeRoster: %v", err)
	}
	if len(depts) != 2 || len(depts["Bagging"]) != 0 {
		t.Fatalf("departments = %v", depts.Names())
	}

	rows := depts["Cut-Up"]
	if rows[0].EmployeeID != "101" || rows[0].Name != "Ann Lee" || rows[0].Extra["Shift"] != "A" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if *rows[1].Start != clock.New(6, 0, 0) || !rows[1].Type.IsBreak() {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestDecodeRosterBadTime(t *testing.T) {
	_, err := DecodeRoster(strings.NewReader("departments:\n  A:\n    - EmployeeID: E1\n      StartTime: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "A row 1") {
		t.Fatalf("error = %v, want it to name the row", err)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	rosterPath := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(rulesPath, []byte(rulesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rosterPath, []byte(rosterYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if rules, err := LoadRules(rulesPath); err != nil || len(rules) != 3 {
		t.Fatalf("LoadRules = %d rules, %v", len(rules), err)
	}
	if depts, err := LoadRoster(rosterPath); err != nil || len(depts) != 2 {
		t.Fatalf("LoadRoster = %v, %v", depts, err)
	}
	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEncodeRulesRoundTrip(t *testing.T) {
	rules, err := DecodeRules(strings.NewReader(rulesYAML))
	if err != nil {
		t.Fatalf("DecodeRules: %v", err)
	}

	var buf strings.Builder
	if err := EncodeRules(&buf, rules); err != nil {
		t.Fatalf("EncodeRules: %v", err)
	}
	if strings.Contains(buf.String(), "batch_count: null") {
		t.Fatalf("unset fields should be omitted:\n%s", buf.String())
	}

	again, err := DecodeRules(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("DecodeRules(encoded): %v\n%s", err, buf.String())
	}
	if len(again) != len(rules) {
		t.Fatalf("got %d rules back, want %d", len(again), len(rules))
	}
	if *again[1].BreakStart != clock.New(9, 0, 0) || *again[1].BatchCount != 3 {
		t.Errorf("Bagging rule = %+v", again[1])
	}
	if again[2].HasWindow() {
		t.Error("Tray Pack rule should still have no window")
	}
}
