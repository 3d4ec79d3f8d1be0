// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/boltstep/boltstep/internal/engine"
)

type (
	// Engine is the slice of the engine CLI the dispatcher needs.
	Engine interface {
		RunArgs(opts engine.RunOptions) ([]string, error)
		ApplyArgs(opts engine.ApplyOptions) []string
		ModuleAddArgs(module, projectDir string) []string
		Run(ctx context.Context, args ...string) (*engine.Result, error)
		RunStatus(ctx context.Context, args ...string) error
	}

	// Writer persists run artifacts.
	Writer interface {
		WriteFile(path string, data []byte) error
	}

	// RunContext carries the paths every action needs.
	RunContext struct {
		ProjectDir    string
		InventoryPath string
		ParamsPath    string
		TargetsPath   string
		ManifestPath  string
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)

	// Dispatcher executes actions on the engine.
	Dispatcher struct {
		engine       Engine
		writer       Writer
		helperModule string
		logger       *log.Logger
	}
)

// WithHelperModule overrides the module that provides loadjson for applies.
func WithHelperModule(module string) Option {
	return func(d *Dispatcher) {
		if module != "" {
			d.helperModule = module
		}
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher.
func New(e Engine, w Writer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:       e,
		writer:       w,
		helperModule: DefaultHelperModule,
		logger:       log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HelperModule returns the module applies depend on.
func (d *Dispatcher) HelperModule() string { return d.helperModule }

// Args returns the engine arguments that execute action.
func (d *Dispatcher) Args(action Action, rc RunContext) ([]string, error) {
	switch a := action.(type) {
	case Task:
		return d.engine.RunArgs(runOptions(engine.SubcommandTask, a.Name, rc))
	case Plan:
		return d.engine.RunArgs(runOptions(engine.SubcommandPlan, a.Name, rc))
	case Apply:
		return d.engine.ApplyArgs(engine.ApplyOptions{
			Manifest:      rc.ManifestPath,
			ProjectDir:    rc.ProjectDir,
			InventoryFile: rc.InventoryPath,
			TargetsFile:   rc.TargetsPath,
		}), nil
	default:
		panic(fmt.Sprintf("dispatch: unhandled action %T", action))
	}
}

// Dispatch executes action. The engine's stdout and exit code are returned
// as-is; a non-zero exit is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, rc RunContext) (*engine.Result, error) {
	if apply, ok := action.(Apply); ok {
		if err := d.prepareApply(ctx, apply, rc); err != nil {
			return nil, err
		}
	}

	args, err := d.Args(action, rc)
	if err != nil {
		return nil, err
	}

	d.logger.Info("dispatching", "action", action.Kind(), "args", args)
	res, err := d.engine.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	d.logger.Info("engine finished", "exit_code", res.ExitCode, "stdout_bytes", len(res.Stdout))
	return res, nil
}

// prepareApply writes the manifest and makes sure the helper module is part
// of the project.
func (d *Dispatcher) prepareApply(ctx context.Context, a Apply, rc RunContext) error {
	if err := d.writer.WriteFile(rc.ManifestPath, []byte(Manifest(a.Class, rc.ParamsPath))); err != nil {
		return fmt.Errorf("write apply manifest: %w", err)
	}

	declared, err := ModuleDeclared(rc.ProjectDir, d.helperModule)
	if err != nil {
		return err
	}
	if declared {
		return nil
	}

	d.logger.Info("adding helper module", "module", d.helperModule)
	if err := d.engine.RunStatus(ctx, d.engine.ModuleAddArgs(d.helperModule, rc.ProjectDir)...); err != nil {
		return fmt.Errorf("add helper module %s: %w", d.helperModule, err)
	}
	return nil
}

func runOptions(sub engine.Subcommand, name string, rc RunContext) engine.RunOptions {
	return engine.RunOptions{
		Subcommand:    sub,
		Name:          name,
		ProjectDir:    rc.ProjectDir,
		InventoryFile: rc.InventoryPath,
		ParamsFile:    rc.ParamsPath,
		TargetsFile:   rc.TargetsPath,
	}
}
