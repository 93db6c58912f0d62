// Package fault defines the error taxonomy shared by the run engine, the
// approval lifecycle manager, and the CLI boundary.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes a failure for callers and for the CLI exit mapping.
type Code string

const (
	// CodeValidation: missing or invalid required input. Rejected before
	// any state mutation; nothing is persisted.
	CodeValidation Code = "VALIDATION"

	// CodeNotFound: unknown run id, workflow id, or approval id. Surfaced
	// at the top level with no partial mutation performed.
	CodeNotFound Code = "NOT_FOUND"

	// CodeStageFailed: a stage handler failed. The failure is recorded in
	// the stage record and the run is marked failed but remains resumable.
	CodeStageFailed Code = "STAGE_FAILED"

	// CodeCollaborator: an optional external tool or script is missing or
	// soft-failed. Degrades to a recorded skip, never fails the operation.
	CodeCollaborator Code = "COLLABORATOR_UNAVAILABLE"
)

// Error is a categorized failure with optional structured detail.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error // wrapped cause, optional
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// StageFailed wraps a stage handler failure, recording which stage broke.
func StageFailed(stage string, err error) *Error {
	return &Error{
		Code:    CodeStageFailed,
		Message: fmt.Sprintf("stage %s failed", stage),
		Details: map[string]string{"stage": stage},
		Err:     err,
	}
}

// CodeOf extracts the taxonomy code from an error chain.
// Returns "" when the chain contains no *Error.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsValidation reports whether the error chain is a VALIDATION failure.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsNotFound reports whether the error chain is a NOT_FOUND failure.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsStageFailed reports whether the error chain is a STAGE_FAILED failure.
func IsStageFailed(err error) bool { return CodeOf(err) == CodeStageFailed }
