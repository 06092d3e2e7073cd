/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package breaks turns department break rules into conflict-checked break batches.
package breaks

import (
	"cmp"
	"slices"

	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
)

// GroupKey identifies employees that are batched together.
type GroupKey struct {
	DeptID  string
	Station string
	Role    string
}

// GroupEmployees buckets every non-break entry by department, station and role.
func GroupEmployees(entries []models.RosterEntry) map[GroupKey][]models.RosterEntry {
	grouped := make(map[GroupKey][]models.RosterEntry)
	for _, entry := range entries {
		if entry.Type.IsBreak() {
			continue
		}
		key := GroupKey{DeptID: entry.DeptID, Station: entry.Station, Role: entry.Role}
		grouped[key] = append(grouped[key], entry)
	}
	return grouped
}

// ExistingBreaks returns the break entries that already have a full window.
func ExistingBreaks(entries []models.RosterEntry) []models.RosterEntry {
	var existing []models.RosterEntry
	for _, entry := range entries {
		if entry.Type.IsBreak() && entry.HasWindow() {
			existing = append(existing, entry)
		}
	}
	return existing
}

// groupsFor returns the department's group keys in station, role order.
func groupsFor(grouped map[GroupKey][]models.RosterEntry, deptID string) []GroupKey {
	var keys []GroupKey
	for key := range grouped {
		if key.DeptID == deptID {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b GroupKey) int {
		return cmp.Or(cmp.Compare(a.Station, b.Station), cmp.Compare(a.Role, b.Role))
	})
	return keys
}

// Scheduler produces break entries for a roster.
type Scheduler struct {
	logger zerolog.Logger
}

// New creates a break scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "break_scheduler").Logger(),
	}
}

// Allocation is an accepted batch together with the group it belongs to.
type Allocation struct {
	Group GroupKey
	Batch Batch
}

// Allocate batches every group covered by rules. Rules are validated up front
// and any error aborts the whole run with nothing returned. Concurrency is
// checked against breaks already present in entries, per department.
func (s *Scheduler) Allocate(rules []models.BreakRule, entries []models.RosterEntry) ([]Allocation, error) {
	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			s.logger.Error().Err(err).Str("dept_id", rule.DeptID).Msg("break rule rejected")
			return nil, err
		}
	}

	grouped := GroupEmployees(entries)
	existing := ExistingBreaks(entries)

	var allocations []Allocation
	for _, rule := range rules {
		keys := groupsFor(grouped, rule.DeptID)
		if len(keys) == 0 {
			s.logger.Debug().Str("dept_id", rule.DeptID).Msg("no employees for break rule")
			continue
		}

		for _, key := range keys {
			employees := grouped[key]
			batches, err := ComputeSlices(rule, employees)
			if err != nil {
				return nil, err
			}

			count := ResolveBatchCount(rule, len(employees))
			size := ResolveBatchSize(rule, len(employees), count)

			for _, batch := range batches {
				if err := CheckConcurrency(rule, batch, existing, size); err != nil {
					s.logger.Error().Err(err).
						Str("dept_id", rule.DeptID).
						Str("station", key.Station).
						Str("role", key.Role).
						Int("batch", batch.Index).
						Msg("break batch rejected")
					return nil, err
				}
				allocations = append(allocations, Allocation{Group: key, Batch: batch})
			}

			s.logger.Debug().
				Str("dept_id", rule.DeptID).
				Str("station", key.Station).
				Str("role", key.Role).
				Int("employees", len(employees)).
				Int("batches", len(batches)).
				Msg("group batched")
		}
	}

	return allocations, nil
}

// Schedule returns one Break entry per employee per accepted batch.
func (s *Scheduler) Schedule(rules []models.BreakRule, entries []models.RosterEntry) ([]models.RosterEntry, error) {
	allocations, err := s.Allocate(rules, entries)
	if err != nil {
		return nil, err
	}

	var planned []models.RosterEntry
	for _, a := range allocations {
		planned = append(planned, breakEntries(a.Group, a.Batch)...)
	}

	s.logger.Info().Int("rules", len(rules)).Int("breaks", len(planned)).Msg("breaks scheduled")
	return planned, nil
}

func breakEntries(key GroupKey, batch Batch) []models.RosterEntry {
	out := make([]models.RosterEntry, 0, len(batch.Members))
	for _, member := range batch.Members {
		out = append(out, models.RosterEntry{
			DeptID:     member.DeptID,
			EmployeeID: member.EmployeeID,
			Station:    key.Station,
			Role:       key.Role,
			StartTime:  clock.Ptr(batch.Start),
			EndTime:    clock.Ptr(batch.End),
			Type:       models.EntryBreak,
			Ref:        member.Ref,
		})
	}
	return out
}
