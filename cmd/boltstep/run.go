// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/boltstep/boltstep/internal/assemble"
	"github.com/boltstep/boltstep/internal/config"
	"github.com/boltstep/boltstep/internal/issue"
	"github.com/boltstep/boltstep/internal/output"
	"github.com/boltstep/boltstep/internal/pipeline"
	"github.com/boltstep/boltstep/pkg/types"
)

// runFlags are the `boltstep run` options. Zero values defer to settings.
type runFlags struct {
	spec          specFlags
	output        string
	timeout       time.Duration
	keepWorkspace bool
	engineBinary  string
	configScope   string
	runID         string
}

func newRunCommand(app *App) *cobra.Command {
	var flags runFlags

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Provision the project and run the job's action",
		Long: `Provision the automation project named by the job spec, resolve its
inventory, write the engine configuration and run exactly one task, plan
or apply. The engine's JSON result goes to the output target unchanged and
boltstep exits with the engine's exit code.

Exit codes: the engine's own code when it ran, 2 for job spec and
configuration errors, 1 for any other failure.`,
		Example: `  boltstep run --spec job.yaml
  cat job.json | boltstep run --spec - --format json
  boltstep run --spec metadata --output metadata
  boltstep run --spec job.toml --output file:/tmp/result.json --keep-workspace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd.Context(), app, flags)
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&flags.spec.source, "spec", "s", "", "job spec file, - for stdin, or metadata (default metadata when metadata.url is set)")
	f.StringVar(&flags.spec.format, "format", "", "job spec format: yaml, json or toml (default from extension; yaml for stdin)")
	f.StringVarP(&flags.output, "output", "o", output.TargetStdout, "where the engine result goes: stdout, file:<path> or metadata")
	f.DurationVar(&flags.timeout, "timeout", 0, "cancel the run after this long (overrides run.timeout)")
	f.BoolVar(&flags.keepWorkspace, "keep-workspace", false, "keep the run workspace for debugging")
	f.StringVar(&flags.engineBinary, "engine", "", "engine executable (overrides engine.binary)")
	f.StringVar(&flags.configScope, "config-scope", "", "engine configuration scope: run or global (overrides engine.config_scope)")
	f.StringVar(&flags.runID, "run-id", "", "label for the workspace and log lines (default a random UUID)")

	return runCmd
}

func runJob(ctx context.Context, app *App, flags runFlags) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	applyRunFlags(cfg, flags)
	logger := app.logger(cfg)

	if cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Run.Timeout)
		defer cancel()
	}

	meta := app.metadataClient(cfg)
	spec, err := flags.spec.load(ctx, app.stdin, meta)
	if err != nil {
		return app.fail(specError(err, flags.spec.source))
	}

	var pub output.Publisher
	if meta != nil {
		pub = meta
	}
	sink, err := output.Parse(flags.output, app.stdout, pub, cfg.Output.Key)
	if err != nil {
		return app.fail(newServiceError(err, types.ExitConfigError, issue.OutputSinkFailedId))
	}

	runID := flags.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	outcome, err := pipeline.Run(ctx, spec, sink, pipeline.Options{
		EngineBinary:  cfg.Engine.Binary,
		ConfigScope:   cfg.Engine.ConfigScope,
		HelperModule:  cfg.Engine.HelperModule,
		WorkspaceDir:  cfg.Workspace.Dir,
		KeepWorkspace: cfg.Workspace.Keep,
		RunID:         runID,
		ExecCommand:   app.ExecCommand,
		GitClone:      app.GitClone,
		HTTPClient:    app.HTTPClient,
		Stderr:        app.stderr,
		Logger:        logger,
	})
	if err != nil {
		return app.fail(pipelineError(err))
	}

	if code := outcome.ExitCode(); !code.IsSuccess() {
		logger.Warn("engine reported failure", "run_id", runID, "exit_code", code)
		return &ExitError{Code: code}
	}
	return nil
}

func applyRunFlags(cfg *config.Config, flags runFlags) {
	if flags.timeout > 0 {
		cfg.Run.Timeout = flags.timeout
	}
	if flags.keepWorkspace {
		cfg.Workspace.Keep = true
	}
	if flags.engineBinary != "" {
		cfg.Engine.Binary = flags.engineBinary
	}
	if flags.configScope != "" {
		cfg.Engine.ConfigScope = assemble.ConfigScope(flags.configScope)
	}
}
