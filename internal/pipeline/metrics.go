/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pipeline

// Metrics receives run instrumentation.
type Metrics interface {
	ObserveStage(stage string, seconds float64, success bool)
	AddBreaksInserted(n int)
	AddConflicts(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) ObserveStage(string, float64, bool) {}
func (NopMetrics) AddBreaksInserted(int)              {}
func (NopMetrics) AddConflicts(int)                   {}
