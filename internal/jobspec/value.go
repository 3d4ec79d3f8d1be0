// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"github.com/tidwall/gjson"
)

const (
	// Absent means the key path does not exist in the job spec.
	Absent Presence = iota
	// Empty means the key exists but holds null or an empty string.
	Empty
	// Present means the key exists and holds any other value, including
	// false, 0, empty objects and empty arrays.
	Present
)

type (
	// Presence is the tri-state result of a job spec lookup.
	Presence int

	// Value is the result of looking up a key path in a Spec.
	Value struct {
		result gjson.Result
	}
)

// String returns the presence state name.
func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Empty:
		return "empty"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

// Presence reports whether the value is absent, empty or present.
func (v Value) Presence() Presence {
	if !v.result.Exists() {
		return Absent
	}
	switch v.result.Type {
	case gjson.Null:
		return Empty
	case gjson.String:
		if v.result.Str == "" {
			return Empty
		}
	}
	return Present
}

// IsSet reports whether the value is Present. Optional fields fall back to
// their default when IsSet is false.
func (v Value) IsSet() bool { return v.Presence() == Present }

// String returns the value as a string. Non-string scalars are formatted;
// objects and arrays return their JSON text.
func (v Value) String() string { return v.result.String() }

// StringOr returns the string value when set, otherwise def.
func (v Value) StringOr(def string) string {
	if !v.IsSet() {
		return def
	}
	return v.result.String()
}

// Raw returns the JSON text of the value exactly as it appears in the
// canonical document. Raw is empty when the value is Absent.
func (v Value) Raw() string { return v.result.Raw }

// IsObject reports whether the value is a JSON object.
func (v Value) IsObject() bool { return v.result.IsObject() }

// IsArray reports whether the value is a JSON array.
func (v Value) IsArray() bool { return v.result.IsArray() }

// IsString reports whether the value is a JSON string.
func (v Value) IsString() bool { return v.result.Type == gjson.String }

// Strings returns the elements of an array value as strings. Absent and
// empty values yield nil.
func (v Value) Strings() []string {
	if !v.IsSet() {
		return nil
	}
	items := v.result.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}
