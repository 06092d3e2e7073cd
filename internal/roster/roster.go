/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package roster reads break rule and department roster files.
//
// Rule file:
//
//	rules:
//	  - dept_id: Cut-Up
//	    break_start: "08:00"
//	    break_end: "08:30"
//	    batch_size: 2
//
// Roster file:
//
//	departments:
//	  Cut-Up:
//	    - EmployeeID: E1
//	      Station: L1
//	      StartTime: "06:00"
package roster

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/pipeline"
)

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	DeptID        string `yaml:"dept_id"`
	BreakStart    any    `yaml:"break_start"`
	BreakEnd      any    `yaml:"break_end"`
	BatchCount    *int   `yaml:"batch_count,omitempty"`
	BatchSize     *int   `yaml:"batch_size,omitempty"`
	MaxConcurrent *int   `yaml:"max_concurrent,omitempty"`
}

type rosterFile struct {
	Departments map[string][]map[string]any `yaml:"departments"`
}

// LoadRules reads a rule file from path.
func LoadRules(path string) ([]models.BreakRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()

	rules, err := DecodeRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// DecodeRules parses a rule document. A rule without a window is returned as
// is; the break scheduler reports it when it is used.
func DecodeRules(r io.Reader) ([]models.BreakRule, error) {
	var doc ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	seen := map[string]bool{}
	rules := make([]models.BreakRule, 0, len(doc.Rules))
	for i, rs := range doc.Rules {
		dept := strings.TrimSpace(rs.DeptID)
		if dept == "" {
			return nil, fmt.Errorf("rule %d: dept_id is required", i+1)
		}
		if seen[dept] {
			return nil, fmt.Errorf("rule %d: duplicate rule for department %s", i+1, dept)
		}
		seen[dept] = true

		start, err := optionalTime(rs.BreakStart)
		if err != nil {
			return nil, fmt.Errorf("rule %s: break_start: %w", dept, err)
		}
		end, err := optionalTime(rs.BreakEnd)
		if err != nil {
			return nil, fmt.Errorf("rule %s: break_end: %w", dept, err)
		}

		rules = append(rules, models.BreakRule{
			DeptID:        dept,
			BreakStart:    start,
			BreakEnd:      end,
			BatchCount:    rs.BatchCount,
			BatchSize:     rs.BatchSize,
			MaxConcurrent: rs.MaxConcurrent,
		})
	}
	return rules, nil
}

// EncodeRules writes rules in the rule file format read by DecodeRules.
func EncodeRules(w io.Writer, rules []models.BreakRule) error {
	doc := ruleFile{Rules: make([]ruleSpec, 0, len(rules))}
	for _, rule := range rules {
		spec := ruleSpec{
			DeptID:        rule.DeptID,
			BatchCount:    rule.BatchCount,
			BatchSize:     rule.BatchSize,
			MaxConcurrent: rule.MaxConcurrent,
		}
		if rule.BreakStart != nil {
			spec.BreakStart = timeText(*rule.BreakStart)
		}
		if rule.BreakEnd != nil {
			spec.BreakEnd = timeText(*rule.BreakEnd)
		}
		doc.Rules = append(doc.Rules, spec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}

func timeText(t clock.TimeOfDay) string {
	text, _ := t.MarshalText()
	return string(text)
}

// LoadRoster reads a roster file from path.
func LoadRoster(path string) (pipeline.Departments, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	depts, err := DecodeRoster(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return depts, nil
}

// DecodeRoster parses a roster document into department rows.
func DecodeRoster(r io.Reader) (pipeline.Departments, error) {
	raw, err := DecodeRosterFields(r)
	if err != nil {
		return nil, err
	}
	return pipeline.DepartmentsFromFields(raw)
}

// DecodeRosterFields parses a roster document into string-keyed records
// without interpreting them.
func DecodeRosterFields(r io.Reader) (map[string][]map[string]string, error) {
	var doc rosterFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	return Fields(doc.Departments)
}

// Fields renders decoded per-department records as text. Values must be
// scalars; numbers keep their shortest decimal form.
func Fields(raw map[string][]map[string]any) (map[string][]map[string]string, error) {
	out := make(map[string][]map[string]string, len(raw))
	for dept, records := range raw {
		rows := make([]map[string]string, 0, len(records))
		for i, record := range records {
			fields := make(map[string]string, len(record))
			for key, value := range record {
				s, err := scalar(value)
				if err != nil {
					return nil, fmt.Errorf("%s row %d: field %s: %w", dept, i+1, key, err)
				}
				fields[key] = s
			}
			rows = append(rows, fields)
		}
		out[dept] = rows
	}
	return out, nil
}

func optionalTime(value any) (*clock.TimeOfDay, error) {
	s, err := scalar(value)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := clock.Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scalar renders a decoded YAML scalar as text.
func scalar(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", value)
	}
}
