/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pipeline

import "slices"

// Result is the outcome of one stage: either a success carrying a payload or
// a failure carrying an error list. Both carry a human-readable message. A
// Result is never modified after construction.
type Result[T any] struct {
	ok      bool
	message string
	data    T
	errors  []string
	cause   error
}

// Ok builds a success.
func Ok[T any](message string, data T) Result[T] {
	return Result[T]{ok: true, message: message, data: data}
}

// Fail builds a failure.
func Fail[T any](message string, errs ...string) Result[T] {
	return Result[T]{message: message, errors: slices.Clone(errs)}
}

// FailWith builds a failure that also keeps the underlying error for callers
// that branch on it with errors.Is.
func FailWith[T any](cause error, message string, errs ...string) Result[T] {
	return Result[T]{message: message, errors: slices.Clone(errs), cause: cause}
}

// Success reports which variant this is.
func (r Result[T]) Success() bool { return r.ok }

// Message returns the stage message.
func (r Result[T]) Message() string { return r.message }

// Data returns the payload; the zero value on failure.
func (r Result[T]) Data() T { return r.data }

// Errors returns a copy of the error list; empty on success.
func (r Result[T]) Errors() []string { return slices.Clone(r.errors) }

// Err returns the underlying error of a failure, if one was recorded.
func (r Result[T]) Err() error { return r.cause }
