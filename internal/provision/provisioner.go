// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/workspace"
)

type (
	// Engine is the slice of the engine CLI the provisioner needs.
	Engine interface {
		ModuleInstallArgs(projectDir string) []string
		RunStatus(ctx context.Context, args ...string) error
	}

	// Fetcher materialises a project source into dest.
	Fetcher interface {
		Fetch(ctx context.Context, src jobspec.ProjectSource, dest string) (*Project, error)
	}

	// Project is a provisioned automation project.
	Project struct {
		Dir  string
		Kind jobspec.ProjectKind
		// Commit is the checked-out commit for git projects.
		Commit string
	}

	// Option configures a Provisioner.
	Option func(*Provisioner)

	// Provisioner fetches the project into the workspace and installs its
	// modules.
	Provisioner struct {
		ws       *workspace.Workspace
		engine   Engine
		fetchers map[jobspec.ProjectKind]Fetcher
		logger   *log.Logger
	}
)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(p *Provisioner) {
		p.logger = l
	}
}

// WithFetcher replaces the fetcher for kind.
func WithFetcher(kind jobspec.ProjectKind, f Fetcher) Option {
	return func(p *Provisioner) {
		p.fetchers[kind] = f
	}
}

// New creates a Provisioner with the default tarball and git fetchers.
func New(ws *workspace.Workspace, engine Engine, opts ...Option) *Provisioner {
	p := &Provisioner{
		ws:     ws,
		engine: engine,
		fetchers: map[jobspec.ProjectKind]Fetcher{
			jobspec.ProjectTarball: NewTarballFetcher(ws),
			jobspec.ProjectGit:     NewGitFetcher(ws),
		},
		logger: log.New(os.Stderr),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision fetches src into the workspace project directory, then installs
// the project's modules. Any failure is fatal to the run.
func (p *Provisioner) Provision(ctx context.Context, src jobspec.ProjectSource) (*Project, error) {
	if err := src.Kind.Validate(); err != nil {
		return nil, err
	}
	fetcher, ok := p.fetchers[src.Kind]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for project type %q", src.Kind)
	}

	dest := p.ws.ProjectDir()
	p.logger.Info("provisioning project", "type", src.Kind, "source", RedactSource(src.Source))

	project, err := fetcher.Fetch(ctx, src, dest)
	if err != nil {
		return nil, err
	}

	p.logger.Info("installing project modules", "project", project.Dir)
	if err := p.engine.RunStatus(ctx, p.engine.ModuleInstallArgs(project.Dir)...); err != nil {
		return nil, &ModuleInstallError{ProjectDir: project.Dir, Err: err}
	}
	return project, nil
}
