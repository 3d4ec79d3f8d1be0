// SPDX-License-Identifier: MPL-2.0

// Package inventory decides which inventory file the engine reads.
package inventory

import (
	"path/filepath"

	"github.com/boltstep/boltstep/internal/jobspec"
)

// DefaultFileName is the inventory file an engine project carries.
const DefaultFileName = "inventory.yaml"

const (
	// SourceSpec means the inventory was materialised from the job spec.
	SourceSpec Source = "spec"
	// SourceProject means the project's own inventory file is used.
	SourceProject Source = "project"
)

type (
	// Source records where the resolved inventory came from.
	Source string

	// Writer persists an inline inventory.
	Writer interface {
		WriteFile(path string, data []byte) error
	}

	// Reference is the resolved inventory path.
	Reference struct {
		Path   string
		Source Source
	}
)

// Resolve returns the inventory the engine should use. An inventory in the
// job spec wins and is written verbatim to inlinePath: strings as-is, and
// structured values as their JSON text, which is valid YAML. Otherwise the
// project's inventory.yaml is used without checking that it exists.
func Resolve(spec *jobspec.Spec, projectDir, inlinePath string, w Writer) (Reference, error) {
	inv := spec.Get(jobspec.PathInventory)
	if !inv.IsSet() {
		return Reference{Path: filepath.Join(projectDir, DefaultFileName), Source: SourceProject}, nil
	}

	content := inv.Raw()
	if inv.IsString() {
		content = inv.String()
	}
	if err := w.WriteFile(inlinePath, []byte(content)); err != nil {
		return Reference{}, err
	}
	return Reference{Path: inlinePath, Source: SourceSpec}, nil
}
