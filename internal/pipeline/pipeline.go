// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/boltstep/boltstep/internal/assemble"
	"github.com/boltstep/boltstep/internal/dispatch"
	"github.com/boltstep/boltstep/internal/engine"
	"github.com/boltstep/boltstep/internal/inventory"
	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/output"
	"github.com/boltstep/boltstep/internal/provision"
	"github.com/boltstep/boltstep/internal/workspace"
	"github.com/boltstep/boltstep/pkg/types"
)

type (
	// Options configures a run. The zero value runs the default engine with
	// run-scoped configuration in a temporary workspace.
	Options struct {
		EngineBinary string
		ConfigScope  assemble.ConfigScope
		HelperModule string
		// WorkspaceDir is the parent of the run workspace. Empty means the
		// system temporary directory.
		WorkspaceDir  string
		KeepWorkspace bool
		// RunID labels the workspace and log lines. Empty generates a UUID.
		RunID    string
		UserHome string

		ExecCommand engine.ExecCommandFunc
		GitClone    provision.CloneFunc
		HTTPClient  *http.Client
		// Stderr receives engine diagnostics. Defaults to os.Stderr.
		Stderr io.Writer
		Logger *log.Logger
	}

	// Outcome describes a run that reached the engine.
	Outcome struct {
		RunID     string
		Workspace string
		Project   *provision.Project
		Inventory inventory.Reference
		Artifacts *assemble.Artifacts
		Result    *engine.Result
	}
)

// ExitCode returns the engine's exit status.
func (o *Outcome) ExitCode() types.ExitCode {
	if o == nil || o.Result == nil {
		return types.ExitFailure
	}
	return o.Result.ExitCode
}

// Prepare validates spec and returns the action plan without touching the
// filesystem or the engine.
func Prepare(spec *jobspec.Spec, scope assemble.ConfigScope) (*jobspec.Plan, dispatch.Action, error) {
	plan, err := jobspec.Parse(spec)
	if err != nil {
		return nil, nil, configErr(err)
	}
	action, err := dispatch.ActionFor(plan)
	if err != nil {
		return nil, nil, configErr(err)
	}
	if scope != "" {
		if err := scope.Validate(); err != nil {
			return nil, nil, &StageError{Stage: StageConfig, Err: err}
		}
	}
	return plan, action, nil
}

// Run executes spec and delivers the engine output to sink. The returned
// Outcome carries the engine exit code; err is non-nil only when a stage
// failed before or around the engine run.
func Run(ctx context.Context, spec *jobspec.Spec, sink output.Sink, opts Options) (*Outcome, error) {
	opts = withDefaults(opts)
	logger := opts.Logger.With("run_id", opts.RunID)

	plan, action, err := Prepare(spec, opts.ConfigScope)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(opts.WorkspaceDir, opts.RunID, opts.KeepWorkspace)
	if err != nil {
		return nil, stageErr(StageWorkspace, err, "create workspace", opts.WorkspaceDir,
			"Check that the workspace directory exists and is writable")
	}
	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			logger.Warn("workspace cleanup failed", "dir", ws.Root(), "err", cerr)
		}
	}()
	if ws.Kept() {
		logger.Info("keeping workspace", "dir", ws.Root())
	}

	out := &Outcome{RunID: opts.RunID, Workspace: ws.Root()}
	cli := NewEngine(ws, plan.Project.Kind, opts)
	if opts.ConfigScope == assemble.ScopeRun {
		linkUserSSH(ws, opts.UserHome, logger)
	}

	prov := provision.New(ws, cli, provisionOptions(ws, opts, logger)...)
	if out.Project, err = prov.Provision(ctx, plan.Project); err != nil {
		return out, provisionErr(err, plan.Project)
	}
	if out.Project.Commit != "" {
		logger.Info("project checked out", "commit", out.Project.Commit)
	}

	if out.Inventory, err = inventory.Resolve(spec, out.Project.Dir, ws.InventoryPath(), ws); err != nil {
		return out, stageErr(StageInventory, err, "write inventory", ws.InventoryPath())
	}
	logger.Debug("inventory resolved", "path", out.Inventory.Path, "source", out.Inventory.Source)

	if out.Artifacts, err = assemble.Assemble(spec, ws, assemble.Options{Scope: opts.ConfigScope, UserHome: opts.UserHome}); err != nil {
		return out, assembleErr(err)
	}
	logger.Debug("engine configuration written", "path", out.Artifacts.ConfigPath)

	d := dispatch.New(cli, ws, dispatch.WithHelperModule(opts.HelperModule), dispatch.WithLogger(logger))
	rc := dispatch.RunContext{
		ProjectDir:    out.Project.Dir,
		InventoryPath: out.Inventory.Path,
		ParamsPath:    out.Artifacts.ParamsPath,
		TargetsPath:   out.Artifacts.TargetsPath,
		ManifestPath:  ws.ManifestPath(),
	}
	if out.Result, err = d.Dispatch(ctx, action, rc); err != nil {
		return out, dispatchErr(err, cli.Binary())
	}

	if err := sink.Write(ctx, out.Result.Stdout); err != nil {
		return out, stageErr(StageOutput, err, "deliver output", sink.String(),
			"Check the --output target and, for metadata, the metadata service URL")
	}
	logger.Info("output delivered", "sink", sink.String(), "exit_code", out.Result.ExitCode)
	return out, nil
}

func withDefaults(opts Options) Options {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.ConfigScope == "" {
		opts.ConfigScope = assemble.ScopeRun
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// NewEngine returns the engine CLI a run uses: HOME points at the workspace
// for run-scoped configuration, and git projects get an ssh command that
// reuses the project key. It does not touch the workspace; Run links the
// user's ~/.ssh into the workspace HOME before the engine starts.
func NewEngine(ws *workspace.Workspace, kind jobspec.ProjectKind, opts Options) *engine.CLI {
	var engineOpts []engine.Option
	if opts.Stderr != nil {
		engineOpts = append(engineOpts, engine.WithStderr(opts.Stderr))
	}
	if opts.ExecCommand != nil {
		engineOpts = append(engineOpts, engine.WithExecCommand(opts.ExecCommand))
	}
	if opts.ConfigScope == "" || opts.ConfigScope == assemble.ScopeRun {
		engineOpts = append(engineOpts, engine.WithHome(ws.HomeDir()))
	}
	if kind == jobspec.ProjectGit {
		engineOpts = append(engineOpts, engine.WithEnv("GIT_SSH_COMMAND", "ssh -F "+ws.SSHConfigPath()))
	}
	return engine.New(opts.EngineBinary, engineOpts...)
}

// linkUserSSH exposes the invoking user's ~/.ssh under the run-scoped HOME.
// A failure only loses the operator's ssh defaults, so it is logged.
func linkUserSSH(ws *workspace.Workspace, userHome string, logger *log.Logger) {
	if userHome == "" {
		var err error
		if userHome, err = os.UserHomeDir(); err != nil {
			logger.Warn("user ssh directory not linked", "err", err)
			return
		}
	}
	linked, err := ws.LinkUserSSH(userHome)
	switch {
	case err != nil:
		logger.Warn("user ssh directory not linked", "home", userHome, "err", err)
	case linked:
		logger.Debug("user ssh directory linked", "home", ws.HomeDir())
	}
}

func provisionOptions(ws *workspace.Workspace, opts Options, logger *log.Logger) []provision.Option {
	popts := []provision.Option{provision.WithLogger(logger)}
	if opts.HTTPClient != nil {
		popts = append(popts, provision.WithFetcher(jobspec.ProjectTarball,
			provision.NewTarballFetcher(ws, provision.WithHTTPClient(opts.HTTPClient))))
	}
	if opts.GitClone != nil {
		popts = append(popts, provision.WithFetcher(jobspec.ProjectGit,
			provision.NewGitFetcher(ws, provision.WithCloneFunc(opts.GitClone))))
	}
	return popts
}

func configErr(err error) error {
	return stageErr(StageConfig, err, "validate job spec", "",
		"Run 'boltstep validate' to list every problem in the job spec")
}

func provisionErr(err error, src jobspec.ProjectSource) error {
	switch {
	case errors.Is(err, jobspec.ErrInvalidJobSpec):
		return configErr(err)
	case errors.Is(err, engine.ErrEngineNotFound):
		return stageErr(StageProvision, err, "install project modules", provision.RedactSource(src.Source),
			"Install the engine or point engine.binary at it")
	case errors.Is(err, provision.ErrModuleInstallFailed):
		return stageErr(StageProvision, err, "install project modules", provision.RedactSource(src.Source),
			"Check the modules listed in bolt-project.yaml and that their sources are reachable")
	case errors.Is(err, provision.ErrRevisionNotFound):
		return stageErr(StageProvision, err, "check out project", provision.RedactSource(src.Source),
			"Check that project.version names an existing tag, branch or commit")
	default:
		return stageErr(StageProvision, err, "fetch project", provision.RedactSource(src.Source),
			"Check that project.source is reachable and, for git, that project.connection.sshKey grants access")
	}
}

func assembleErr(err error) error {
	if errors.Is(err, jobspec.ErrInvalidJobSpec) {
		return configErr(err)
	}
	return stageErr(StageAssemble, err, "write engine configuration", "")
}

func dispatchErr(err error, binary string) error {
	if errors.Is(err, engine.ErrEngineNotFound) {
		return stageErr(StageDispatch, err, "run engine", binary,
			"Install the engine or point engine.binary at it")
	}
	return stageErr(StageDispatch, err, "run engine", binary)
}
