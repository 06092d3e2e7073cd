/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package breaks

import (
	"cmp"
	"slices"

	"github.com/friendsincode/breakplan/internal/clock"
	"github.com/friendsincode/breakplan/internal/models"
)

// Batch is one time slice of a break window and the employees taking it.
type Batch struct {
	Index   int
	Start   clock.TimeOfDay
	End     clock.TimeOfDay
	Members []models.RosterEntry
}

// set treats nil and zero as "not configured", matching how blank rule cells are read.
func set(v *int) (int, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	return *v, true
}

// ceilDiv rounds n/d up for n >= 0 and d > 0 without overflowing.
func ceilDiv(n, d int) int {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

// ResolveBatchCount returns how many slices the window is cut into.
func ResolveBatchCount(rule models.BreakRule, employeeCount int) int {
	if count, ok := set(rule.BatchCount); ok {
		return max(count, 1)
	}
	if size, ok := set(rule.BatchSize); ok {
		return max(ceilDiv(employeeCount, size), 1)
	}
	return 1
}

// ResolveBatchSize returns how many employees go into each slice.
func ResolveBatchSize(rule models.BreakRule, employeeCount, batchCount int) int {
	if size, ok := set(rule.BatchSize); ok {
		return max(size, 1)
	}
	return max(ceilDiv(employeeCount, max(batchCount, 1)), 1)
}

// ResolveMaxConcurrent returns the concurrency cap for a group.
func ResolveMaxConcurrent(rule models.BreakRule, batchSize int) int {
	if limit, ok := set(rule.MaxConcurrent); ok {
		return limit
	}
	return batchSize
}

// ValidateRule rejects rules without a usable break window.
func ValidateRule(rule models.BreakRule) error {
	if !rule.HasWindow() {
		return &ConfigurationError{DeptID: rule.DeptID, Reason: "missing break start or end"}
	}
	if rule.WindowMinutes() <= 0 {
		return &ConfigurationError{DeptID: rule.DeptID, Reason: "break window has no positive duration"}
	}
	return nil
}

// SortMembers orders employees by station, role and employee id. The sort is
// stable so duplicate records keep their input order.
func SortMembers(employees []models.RosterEntry) []models.RosterEntry {
	sorted := slices.Clone(employees)
	slices.SortStableFunc(sorted, func(a, b models.RosterEntry) int {
		return cmp.Or(
			cmp.Compare(a.Station, b.Station),
			cmp.Compare(a.Role, b.Role),
			cmp.Compare(a.EmployeeID, b.EmployeeID),
		)
	})
	return sorted
}

// ComputeSlices cuts the rule's window into equal slices and assigns
// consecutive chunks of the sorted group to them. Slices that end up with no
// members are left out; the remaining batches keep their slice index.
func ComputeSlices(rule models.BreakRule, employees []models.RosterEntry) ([]Batch, error) {
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	count := ResolveBatchCount(rule, len(employees))
	size := ResolveBatchSize(rule, len(employees), count)
	slice := rule.WindowMinutes() / float64(count)
	sorted := SortMembers(employees)

	// Only the first ceil(n/size) slices can receive members.
	filled := min(count, ceilDiv(len(sorted), size))
	batches := make([]Batch, 0, filled)
	for i := range filled {
		lo := i * size
		hi := lo + min(size, len(sorted)-lo)

		end := rule.BreakStart.AddMinutes(slice * float64(i+1))
		if i == count-1 {
			end = *rule.BreakEnd
		}
		batches = append(batches, Batch{
			Index:   i,
			Start:   rule.BreakStart.AddMinutes(slice * float64(i)),
			End:     end,
			Members: sorted[lo:hi],
		})
	}
	return batches, nil
}

// CheckConcurrency counts existing breaks in the rule's department that
// overlap the batch and fails when those plus the batch exceed the cap.
func CheckConcurrency(rule models.BreakRule, batch Batch, existing []models.RosterEntry, batchSize int) error {
	overlapping := 0
	for _, entry := range existing {
		if entry.DeptID != rule.DeptID || !entry.HasWindow() {
			continue
		}
		if clock.Overlaps(*entry.StartTime, *entry.EndTime, batch.Start, batch.End) {
			overlapping++
		}
	}

	proposed := overlapping + len(batch.Members)
	limit := ResolveMaxConcurrent(rule, batchSize)
	if proposed > limit {
		return &ConcurrencyError{
			DeptID:   rule.DeptID,
			Start:    batch.Start,
			End:      batch.End,
			Existing: overlapping,
			Proposed: proposed,
			Limit:    limit,
		}
	}
	return nil
}
