// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

const (
	// ExitSuccess is returned when the engine reports success.
	ExitSuccess ExitCode = 0
	// ExitFailure is returned for provisioning, assembly and other fatal
	// failures that happen before or around the engine invocation.
	ExitFailure ExitCode = 1
	// ExitConfigError is returned when the job specification is rejected
	// before any provisioning starts.
	ExitConfigError ExitCode = 2
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// ExitCodeFromRunError maps the error returned by exec.Cmd.Run to the
// process exit code. A nil error maps to success. The second return value is
// false when err does not describe a process that ran and exited (for
// example, the binary could not be started); the caller must then treat err
// as an infrastructure failure.
func ExitCodeFromRunError(err error) (ExitCode, bool) {
	if err == nil {
		return ExitSuccess, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal; POSIX shells report these as failures too.
			return ExitFailure, true
		}
		return ExitCode(code), true
	}
	return ExitFailure, false
}
