// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/boltstep/boltstep/internal/issue"
	"github.com/boltstep/boltstep/pkg/types"
)

// ServiceError is a failure the CLI layer renders before exiting: the
// formatted error and, in verbose mode, the matching issue catalog entry.
// Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// Code is the process exit status.
	Code types.ExitCode
	// IssueID is the issue catalog ID for rendering help text. When 0, the
	// ID carried by an ActionableError in Err is used.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, code types.ExitCode, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, Code: code, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError writes svcErr to stderr and returns the ExitError the
// command should return.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, verbose bool) error {
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(svcErr.Err, verbose))

	id := svcErr.IssueID
	if id == 0 {
		id = issue.IssueOf(svcErr.Err)
	}
	if verbose && id != 0 {
		if entry := issue.Get(id); entry != nil {
			rendered, err := entry.Render("dark")
			if err != nil {
				log.Warn("failed to render issue catalog entry", "issue", id, "err", err)
			} else {
				fmt.Fprint(stderr, rendered)
			}
		}
	}
	return &ExitError{Code: svcErr.Code, Err: svcErr}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// carry their suggestions, and the full chain in verbose mode.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
