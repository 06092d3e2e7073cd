/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package breaks

import (
	"errors"
	"fmt"

	"github.com/friendsincode/breakplan/internal/clock"
)

var (
	// ErrConfiguration indicates a break rule that cannot be scheduled.
	ErrConfiguration = errors.New("invalid break rule")

	// ErrConcurrencyExceeded indicates a batch would put too many people on break at once.
	ErrConcurrencyExceeded = errors.New("concurrent break limit exceeded")
)

// ConfigurationError names the department whose rule is unusable.
type ConfigurationError struct {
	DeptID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("department %s: %s", e.DeptID, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ConcurrencyError reports the window where the limit was exceeded.
type ConcurrencyError struct {
	DeptID   string
	Start    clock.TimeOfDay
	End      clock.TimeOfDay
	Existing int
	Proposed int
	Limit    int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("department %s: %d on break during %s-%s exceeds limit of %d (%d already scheduled)",
		e.DeptID, e.Proposed, e.Start, e.End, e.Limit, e.Existing)
}

// Is matches ErrConcurrencyExceeded.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyExceeded
}

// Department returns the department an error from this package refers to.
func Department(err error) (string, bool) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.DeptID, true
	}
	var concErr *ConcurrencyError
	if errors.As(err, &concErr) {
		return concErr.DeptID, true
	}
	return "", false
}
