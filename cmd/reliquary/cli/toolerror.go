// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies command errors so exit codes and operator
// hints can be derived without parsing error message text.
type ErrorCategory string

const (
	// CategoryValidation indicates bad input: missing arguments,
	// unparseable values, a roster that fails validation. Fix the
	// input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound indicates a referenced resource does not
	// exist: a missing bundle file, an SWHID not in the bundle.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden indicates key material was insufficient:
	// shares below threshold, an identity that opens nothing.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryConflict indicates the operation collides with
	// existing state: an output file that already exists.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryInternal indicates an unexpected error: bugs, I/O
	// failures, corrupted data the system produced. Report rather
	// than retry.
	CategoryInternal ErrorCategory = "internal"
)

// exitCode maps each category to the process exit code.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryNotFound:   3,
	CategoryForbidden:  4,
	CategoryConflict:   5,
	CategoryInternal:   1,
}

// ToolError is a categorized error returned by command handlers. The
// category decides the exit code; the optional hint is printed after
// the error for the operator.
type ToolError struct {
	// Category classifies the error.
	Category ErrorCategory

	// Err is the underlying error with the human-readable message.
	Err error

	// Hint, when set, is printed on its own line after the error.
	Hint string
}

// Error returns the underlying error message. The category travels
// separately via the exit code, not in the text.
func (e *ToolError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error so errors.Is and errors.As
// walk the full chain through the ToolError wrapper.
func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for the error's category.
func (e *ToolError) ExitCode() int {
	if code, ok := exitCodes[e.Category]; ok {
		return code
	}
	return 1
}

// WithHint attaches an operator hint and returns the error.
func (e *ToolError) WithHint(format string, args ...any) *ToolError {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error: a referenced resource does not exist.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Forbidden creates a forbidden error: key material was insufficient.
func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

// Conflict creates a conflict error: the operation collides with existing state.
func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure, bug, or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
