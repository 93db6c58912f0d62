package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/stagehand-dev/stagehand/internal/fault"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // run failed, stage error
	ExitCommandError = 2 // bad input, missing records, guardrail veto
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, defaulting to
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// faultExit maps domain error codes onto exit codes: caller mistakes
// (validation, unknown records) are command errors, everything else is a
// plain failure.
func faultExit(err error) *ExitError {
	code := ExitFailure
	if fault.IsValidation(err) || fault.IsNotFound(err) {
		code = ExitCommandError
	}
	return &ExitError{Code: code, Err: err}
}

// printJSON writes the command's result as indented JSON, matching the
// shapes downstream automation parses.
func printJSON(w io.Writer, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
