// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed is the sentinel wrapped by FetchError.
	ErrFetchFailed = errors.New("project fetch failed")

	// ErrModuleInstallFailed is the sentinel wrapped by ModuleInstallError.
	ErrModuleInstallFailed = errors.New("module install failed")

	// ErrRevisionNotFound is returned when a git version cannot be resolved.
	ErrRevisionNotFound = errors.New("revision not found")
)

type (
	// FetchError reports a failure to download, extract or clone a project.
	FetchError struct {
		Op     string
		Source string
		Err    error
	}

	// DownloadStatusError reports a non-2xx response for an archive download.
	DownloadStatusError struct {
		URL    string
		Status int
	}

	// ModuleInstallError reports a failed module install.
	ModuleInstallError struct {
		ProjectDir string
		Err        error
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Err)
}

// Unwrap returns both the sentinel and the cause for errors.Is() compatibility.
func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Err} }

// Error implements the error interface.
func (e *DownloadStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// Error implements the error interface.
func (e *ModuleInstallError) Error() string {
	return fmt.Sprintf("install modules in %s: %v", e.ProjectDir, e.Err)
}

// Unwrap returns both the sentinel and the cause for errors.Is() compatibility.
func (e *ModuleInstallError) Unwrap() []error { return []error{ErrModuleInstallFailed, e.Err} }
