// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		want    Plan
		wantErr error
	}{
		{
			name: "tarball task",
			doc:  `{"project":{"type":"tarball","source":"https://example.com/p.tgz","version":"ignored"},"type":"task","name":"package"}`,
			want: Plan{
				Project: ProjectSource{Kind: ProjectTarball, Source: "https://example.com/p.tgz"},
				Action:  ActionTask,
				Name:    "package",
			},
		},
		{
			name: "git apply with version and key",
			doc:  `{"project":{"type":"git","source":"repo","version":"v1.2.0","connection":{"sshKey":"KEY"}},"type":"apply","name":"profile::web"}`,
			want: Plan{
				Project: ProjectSource{Kind: ProjectGit, Source: "repo", Version: "v1.2.0", SSHKey: "KEY"},
				Action:  ActionApply,
				Name:    "profile::web",
			},
		},
		{
			name: "git plan with null version",
			doc:  `{"project":{"type":"git","source":"repo","version":null},"type":"plan","name":"site"}`,
			want: Plan{
				Project: ProjectSource{Kind: ProjectGit, Source: "repo"},
				Action:  ActionPlan,
				Name:    "site",
			},
		},
		{
			name:    "missing project type",
			doc:     `{"project":{"source":"repo"},"type":"task","name":"x"}`,
			wantErr: &MissingFieldError{},
		},
		{
			name:    "unknown project type",
			doc:     `{"project":{"type":"svn","source":"repo"},"type":"task","name":"x"}`,
			wantErr: &InvalidProjectKindError{},
		},
		{
			name:    "missing source",
			doc:     `{"project":{"type":"git","source":""},"type":"task","name":"x"}`,
			wantErr: &MissingFieldError{},
		},
		{
			name:    "bogus action type",
			doc:     `{"project":{"type":"git","source":"repo"},"type":"bogus","name":"x"}`,
			wantErr: &InvalidActionKindError{},
		},
		{
			name:    "missing name",
			doc:     `{"project":{"type":"git","source":"repo"},"type":"task"}`,
			wantErr: &MissingFieldError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan, err := Parse(mustSpec(t, tt.doc))
			if tt.wantErr != nil {
				if !errors.Is(err, ErrInvalidJobSpec) {
					t.Fatalf("Parse() error = %v, want ErrInvalidJobSpec", err)
				}
				assertErrorType(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if *plan != tt.want {
				t.Errorf("Parse() = %+v, want %+v", *plan, tt.want)
			}
		})
	}
}

func assertErrorType(t *testing.T, err, want error) {
	t.Helper()

	var ok bool
	switch want.(type) {
	case *MissingFieldError:
		var target *MissingFieldError
		ok = errors.As(err, &target)
	case *InvalidProjectKindError:
		var target *InvalidProjectKindError
		ok = errors.As(err, &target)
	case *InvalidActionKindError:
		var target *InvalidActionKindError
		ok = errors.As(err, &target)
	}
	if !ok {
		t.Errorf("error %v (%T) is not a %T", err, err, want)
	}
}

func TestKindValidate(t *testing.T) {
	t.Parallel()

	for _, k := range []ProjectKind{ProjectTarball, ProjectGit} {
		if err := k.Validate(); err != nil {
			t.Errorf("ProjectKind(%q).Validate() = %v", k, err)
		}
	}
	for _, k := range []ActionKind{ActionTask, ActionPlan, ActionApply} {
		if err := k.Validate(); err != nil {
			t.Errorf("ActionKind(%q).Validate() = %v", k, err)
		}
	}
	if err := ProjectKind("").Validate(); !errors.Is(err, ErrInvalidJobSpec) {
		t.Errorf("empty ProjectKind error = %v", err)
	}
	if err := ActionKind("Task").Validate(); !errors.Is(err, ErrInvalidJobSpec) {
		t.Errorf("ActionKind(Task) error = %v", err)
	}
}
