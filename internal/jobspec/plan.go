// SPDX-License-Identifier: MPL-2.0

package jobspec

const (
	// ProjectTarball fetches the project as an archive and extracts it.
	ProjectTarball ProjectKind = "tarball"
	// ProjectGit clones the project from a git repository.
	ProjectGit ProjectKind = "git"

	// ActionTask runs a single task.
	ActionTask ActionKind = "task"
	// ActionPlan runs a plan.
	ActionPlan ActionKind = "plan"
	// ActionApply applies a class as a manifest.
	ActionApply ActionKind = "apply"
)

type (
	// ProjectKind selects how the automation project is fetched.
	ProjectKind string

	// ActionKind selects the engine execution mode.
	ActionKind string

	// ProjectSource describes where the automation project comes from.
	ProjectSource struct {
		Kind   ProjectKind
		Source string
		// Version is the git revision to check out; empty means the
		// repository default branch. Ignored for tarballs.
		Version string
		// SSHKey is private key material for git over SSH; empty means
		// no key. Ignored for tarballs.
		SSHKey string
	}

	// Plan holds the decisions a job spec must make explicitly. Everything
	// else is read lazily through Spec.Get with documented defaults.
	Plan struct {
		Project ProjectSource
		Action  ActionKind
		Name    string
	}
)

// String returns the project kind.
func (k ProjectKind) String() string { return string(k) }

// Validate returns an error if the kind is not tarball or git.
func (k ProjectKind) Validate() error {
	switch k {
	case ProjectTarball, ProjectGit:
		return nil
	default:
		return &InvalidProjectKindError{Value: k}
	}
}

// String returns the action kind.
func (k ActionKind) String() string { return string(k) }

// Validate returns an error if the kind is not task, plan or apply.
func (k ActionKind) Validate() error {
	switch k {
	case ActionTask, ActionPlan, ActionApply:
		return nil
	default:
		return &InvalidActionKindError{Value: k}
	}
}

// Parse resolves the required decisions of a job spec. Every error it
// returns wraps ErrInvalidJobSpec. Parse has no side effects, so a rejected
// spec never causes provisioning.
func Parse(spec *Spec) (*Plan, error) {
	projectType := spec.Get(PathProjectType)
	if !projectType.IsSet() {
		return nil, &MissingFieldError{Path: PathProjectType}
	}
	kind := ProjectKind(projectType.String())
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	source := spec.Get(PathProjectSource)
	if !source.IsSet() {
		return nil, &MissingFieldError{Path: PathProjectSource}
	}

	actionType := spec.Get(PathType)
	if !actionType.IsSet() {
		return nil, &MissingFieldError{Path: PathType}
	}
	action := ActionKind(actionType.String())
	if err := action.Validate(); err != nil {
		return nil, err
	}

	name := spec.Get(PathName)
	if !name.IsSet() {
		return nil, &MissingFieldError{Path: PathName}
	}

	project := ProjectSource{Kind: kind, Source: source.String()}
	if kind == ProjectGit {
		project.Version = spec.String(PathProjectVersion, "")
		project.SSHKey = spec.String(PathProjectSSHKey, "")
	}

	return &Plan{
		Project: project,
		Action:  action,
		Name:    name.String(),
	}, nil
}
