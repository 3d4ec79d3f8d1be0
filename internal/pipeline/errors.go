// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"

	"github.com/boltstep/boltstep/internal/assemble"
	"github.com/boltstep/boltstep/internal/engine"
	"github.com/boltstep/boltstep/internal/issue"
	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/provision"
	"github.com/boltstep/boltstep/pkg/types"
)

const (
	// StageConfig covers job spec parsing and settings checks; its
	// failures exit with ExitConfigError.
	StageConfig Stage = "config"
	// StageWorkspace creates the run workspace.
	StageWorkspace Stage = "workspace"
	// StageProvision fetches the project and installs its modules.
	StageProvision Stage = "provision"
	// StageInventory resolves the inventory file.
	StageInventory Stage = "inventory"
	// StageAssemble writes the engine configuration, parameters and targets.
	StageAssemble Stage = "assemble"
	// StageDispatch runs the action through the engine.
	StageDispatch Stage = "dispatch"
	// StageOutput delivers the engine result to the output sink.
	StageOutput Stage = "output"
)

type (
	// Stage names a pipeline step.
	Stage string

	// StageError reports the stage a run failed in.
	StageError struct {
		Stage Stage
		Err   error
	}
)

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// IsConfigError reports whether the failure came from the job spec or
// settings rather than from provisioning or execution.
func (e *StageError) IsConfigError() bool {
	return e.Stage == StageConfig ||
		errors.Is(e.Err, jobspec.ErrInvalidJobSpec) ||
		errors.Is(e.Err, assemble.ErrInvalidConfigScope)
}

// ExitCode maps the failure to the process exit status.
func (e *StageError) ExitCode() types.ExitCode {
	if e.IsConfigError() {
		return types.ExitConfigError
	}
	return types.ExitFailure
}

// IssueID returns the catalog entry that explains the failure.
func (e *StageError) IssueID() issue.Id {
	switch {
	case e.IsConfigError():
		return issue.JobSpecInvalidId
	case errors.Is(e.Err, engine.ErrEngineNotFound):
		return issue.EngineNotFoundId
	case errors.Is(e.Err, provision.ErrModuleInstallFailed):
		return issue.ModuleInstallFailedId
	case e.Stage == StageProvision:
		return issue.ProjectFetchFailedId
	case e.Stage == StageOutput:
		return issue.OutputSinkFailedId
	default:
		return issue.ArtifactWriteFailedId
	}
}

// ExitCodeOf returns the exit status for err: 0 for nil, the stage mapping
// for a *StageError, and ExitFailure otherwise.
func ExitCodeOf(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.ExitCode()
	}
	return types.ExitFailure
}

func stageErr(stage Stage, err error, operation, resource string, suggestions ...string) error {
	se := &StageError{Stage: stage, Err: err}
	se.Err = issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithSuggestion(suggestions...).
		WithIssue(se.IssueID()).
		Wrap(err).
		BuildError()
	return se
}
