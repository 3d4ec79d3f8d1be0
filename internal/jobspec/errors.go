// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidJobSpec is the sentinel wrapped by every job spec
	// configuration error. Callers use errors.Is to classify a failure as a
	// configuration error rather than a provisioning or execution failure.
	ErrInvalidJobSpec = errors.New("invalid job spec")

	// ErrUnsupportedFormat is returned when a job spec file extension is not
	// one of the recognised formats.
	ErrUnsupportedFormat = errors.New("unsupported job spec format")
)

type (
	// InvalidJobSpecError reports schema violations in a job spec.
	InvalidJobSpecError struct {
		Violations []SchemaViolation
	}

	// MissingFieldError is returned when a required field is absent or empty.
	MissingFieldError struct {
		Path string
	}

	// InvalidProjectKindError is returned when project.type is not a
	// supported project kind.
	InvalidProjectKindError struct {
		Value ProjectKind
	}

	// InvalidActionKindError is returned when type is not a supported action.
	InvalidActionKindError struct {
		Value ActionKind
	}
)

// Error implements the error interface.
func (e *InvalidJobSpecError) Error() string {
	if len(e.Violations) == 1 {
		return "job spec: " + e.Violations[0].String()
	}
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("job spec: %d schema violation(s):\n  %s", len(e.Violations), strings.Join(lines, "\n  "))
}

// Unwrap returns ErrInvalidJobSpec for errors.Is() compatibility.
func (e *InvalidJobSpecError) Unwrap() error { return ErrInvalidJobSpec }

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("job spec: required field %q is not set", e.Path)
}

// Unwrap returns ErrInvalidJobSpec for errors.Is() compatibility.
func (e *MissingFieldError) Unwrap() error { return ErrInvalidJobSpec }

// Error implements the error interface.
func (e *InvalidProjectKindError) Error() string {
	return fmt.Sprintf("job spec: unsupported project.type %q (valid: %s, %s)", e.Value, ProjectTarball, ProjectGit)
}

// Unwrap returns ErrInvalidJobSpec for errors.Is() compatibility.
func (e *InvalidProjectKindError) Unwrap() error { return ErrInvalidJobSpec }

// Error implements the error interface.
func (e *InvalidActionKindError) Error() string {
	return fmt.Sprintf("job spec: unsupported type %q (valid: %s, %s, %s)", e.Value, ActionTask, ActionPlan, ActionApply)
}

// Unwrap returns ErrInvalidJobSpec for errors.Is() compatibility.
func (e *InvalidActionKindError) Unwrap() error { return ErrInvalidJobSpec }
