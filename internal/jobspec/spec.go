// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
)

// Key paths read by the pipeline.
const (
	PathProjectType    = "project.type"
	PathProjectSource  = "project.source"
	PathProjectVersion = "project.version"
	PathProjectSSHKey  = "project.connection.sshKey"

	PathInventory = "inventory"

	PathTransportUsername = "transport.username"
	PathTransportRunAs    = "transport.run-as"
	PathTransportSSHKey   = "transport.connection.sshKey"

	PathType       = "type"
	PathName       = "name"
	PathParameters = "parameters"
	PathTargets    = "targets"
	PathConfig     = "config"
)

// ErrNotAnObject is returned when a job spec document is not a JSON object.
var ErrNotAnObject = errors.New("job spec must be an object")

// Spec is an immutable job specification backed by a canonical JSON document.
type Spec struct {
	doc []byte
}

// FromJSON wraps a canonical JSON document. The document is copied.
func FromJSON(data []byte) (*Spec, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("job spec is not valid JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, ErrNotAnObject
	}
	return &Spec{doc: slices.Clone(data)}, nil
}

// Get resolves a dotted key path. It never fails; missing paths return an
// Absent Value.
func (s *Spec) Get(path string) Value {
	return Value{result: gjson.GetBytes(s.doc, path)}
}

// String returns the string at path, or def when the field is not set.
func (s *Spec) String(path, def string) string {
	return s.Get(path).StringOr(def)
}

// StringSlice returns the string elements of the array at path, or nil.
func (s *Spec) StringSlice(path string) []string {
	return s.Get(path).Strings()
}

// Raw returns the JSON text at path, or "" when the field is not set.
func (s *Spec) Raw(path string) string {
	return s.Get(path).Raw()
}
