// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"slices"
	"testing"
)

func mustSpec(t *testing.T, doc string) *Spec {
	t.Helper()

	spec, err := FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON(%s) error = %v", doc, err)
	}
	return spec
}

func TestSpecGetPresence(t *testing.T) {
	t.Parallel()

	spec := mustSpec(t, `{
		"name": "deploy",
		"version": "",
		"inventory": null,
		"transport": {"run-as": "admin", "username": ""},
		"flag": false,
		"count": 0,
		"config": {},
		"targets": []
	}`)

	tests := []struct {
		path string
		want Presence
	}{
		{path: "name", want: Present},
		{path: "version", want: Empty},
		{path: "inventory", want: Empty},
		{path: PathTransportRunAs, want: Present},
		{path: PathTransportUsername, want: Empty},
		{path: PathTransportSSHKey, want: Absent},
		{path: "flag", want: Present},
		{path: "count", want: Present},
		{path: "config", want: Present},
		{path: "targets", want: Present},
		{path: "missing.deeply.nested", want: Absent},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			v := spec.Get(tt.path)
			if got := v.Presence(); got != tt.want {
				t.Errorf("Get(%q).Presence() = %s, want %s", tt.path, got, tt.want)
			}
			if v.IsSet() != (tt.want == Present) {
				t.Errorf("IsSet() = %v for %s", v.IsSet(), tt.want)
			}
		})
	}
}

func TestSpecStringDefaults(t *testing.T) {
	t.Parallel()

	spec := mustSpec(t, `{"transport": {"username": "deploy", "run-as": null}}`)

	if got := spec.String(PathTransportUsername, "root"); got != "deploy" {
		t.Errorf("username = %q, want %q", got, "deploy")
	}
	if got := spec.String(PathTransportRunAs, "root"); got != "root" {
		t.Errorf("run-as = %q, want default %q", got, "root")
	}
	if got := spec.String("missing", ""); got != "" {
		t.Errorf("missing = %q, want empty", got)
	}
}

func TestValueRawPreservesText(t *testing.T) {
	t.Parallel()

	spec := mustSpec(t, `{"inventory":{"targets":[{"uri":"10.0.0.1"}]},"parameters":{"x":1}}`)

	if got, want := spec.Get(PathInventory).Raw(), `{"targets":[{"uri":"10.0.0.1"}]}`; got != want {
		t.Errorf("Raw() = %s, want %s", got, want)
	}
	if got, want := spec.Get(PathParameters).Raw(), `{"x":1}`; got != want {
		t.Errorf("Raw() = %s, want %s", got, want)
	}
	if !spec.Get(PathInventory).IsObject() {
		t.Error("inventory IsObject() = false")
	}
	if spec.Get("missing").Raw() != "" {
		t.Error("Raw() of an absent value should be empty")
	}
}

func TestValueStrings(t *testing.T) {
	t.Parallel()

	spec := mustSpec(t, `{"targets":["web1","web2","db1"],"none":null}`)

	got := spec.Get(PathTargets).Strings()
	if want := []string{"web1", "web2", "db1"}; !slices.Equal(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
	if got := spec.Get("none").Strings(); got != nil {
		t.Errorf("Strings() of null = %v, want nil", got)
	}
	if !spec.Get(PathTargets).IsArray() {
		t.Error("targets IsArray() = false")
	}
}

func TestFromJSONRejectsNonObjects(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{`[]`, `"x"`, `{`, ``} {
		if _, err := FromJSON([]byte(doc)); err == nil {
			t.Errorf("FromJSON(%q) succeeded, want error", doc)
		}
	}
}

func TestFromJSONCopiesInput(t *testing.T) {
	t.Parallel()

	data := []byte(`{"name":"a"}`)
	spec, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	data[9] = 'b'

	if got := spec.String(PathName, ""); got != "a" {
		t.Errorf("mutating the input changed the spec: name = %q", got)
	}
}

func TestSpecHelpers(t *testing.T) {
	t.Parallel()

	spec := mustSpec(t, `{"targets":["web1","web2"],"parameters":{"x":[1,2]}}`)

	if got := spec.StringSlice(PathTargets); !slices.Equal(got, []string{"web1", "web2"}) {
		t.Errorf("StringSlice() = %v", got)
	}
	if got := spec.StringSlice("missing"); got != nil {
		t.Errorf("StringSlice(missing) = %v, want nil", got)
	}
	if got := spec.Raw(PathParameters); got != `{"x":[1,2]}` {
		t.Errorf("Raw() = %s", got)
	}
	if got := spec.Raw("parameters.y"); got != "" {
		t.Errorf("Raw(missing) = %q", got)
	}
}
