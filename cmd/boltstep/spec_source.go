// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/boltstep/boltstep/internal/issue"
	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/metadata"
	"github.com/boltstep/boltstep/internal/pipeline"
	"github.com/boltstep/boltstep/pkg/types"
)

// SpecFromMetadata selects the metadata service as the job spec source.
const SpecFromMetadata = "metadata"

// ErrNoSpecSource is returned when neither --spec nor metadata.url is set.
var ErrNoSpecSource = errors.New("no job spec source: pass --spec or set metadata.url")

// specFlags selects and decodes the job spec.
type specFlags struct {
	source string
	format string
}

// load reads the job spec from a file, stdin ("-") or the metadata service.
// An empty source means the metadata service when one is configured.
func (f specFlags) load(ctx context.Context, stdin io.Reader, meta *metadata.Client) (*jobspec.Spec, error) {
	source := f.source
	if source == "" {
		if meta == nil {
			return nil, ErrNoSpecSource
		}
		source = SpecFromMetadata
	}

	switch source {
	case SpecFromMetadata:
		if meta == nil {
			return nil, fmt.Errorf("%w: --spec metadata needs metadata.url", ErrNoSpecSource)
		}
		data, err := meta.FetchSpec(ctx)
		if err != nil {
			return nil, err
		}
		return jobspec.Decode(data, jobspec.FormatJSON)
	case jobspec.StdinPath:
		format := jobspec.Format(f.format)
		if format == "" {
			format = jobspec.FormatYAML
		}
		return jobspec.Load(stdin, format)
	default:
		if f.format != "" {
			return loadFileAs(source, jobspec.Format(f.format))
		}
		return jobspec.LoadFile(source)
	}
}

func loadFileAs(path string, format jobspec.Format) (*jobspec.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open job spec: %w", err)
	}
	return jobspec.Decode(data, format)
}

// specError classifies a job spec loading failure.
func specError(err error, source string) *ServiceError {
	code := types.ExitFailure
	if errors.Is(err, jobspec.ErrInvalidJobSpec) || errors.Is(err, jobspec.ErrUnsupportedFormat) ||
		errors.Is(err, ErrNoSpecSource) || errors.Is(err, metadata.ErrSpecNotFound) {
		code = types.ExitConfigError
	}
	if source == "" {
		source = SpecFromMetadata
	}
	wrapped := issue.NewErrorContext().
		WithOperation("load job spec").
		WithResource(source).
		WithSuggestion("Run 'boltstep validate' against the same source to list every problem").
		WithIssue(issue.JobSpecInvalidId).
		Wrap(err).
		BuildError()
	return newServiceError(wrapped, code, issue.JobSpecInvalidId)
}

// configError classifies a settings loading failure.
func configError(err error) *ServiceError {
	return newServiceError(err, types.ExitConfigError, issue.ConfigLoadFailedId)
}

// pipelineError classifies a failed run.
func pipelineError(err error) *ServiceError {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return newServiceError(err, se.ExitCode(), se.IssueID())
	}
	return newServiceError(err, pipeline.ExitCodeOf(err), issue.IssueOf(err))
}
