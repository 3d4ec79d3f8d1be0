// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/pipeline"
	"github.com/boltstep/boltstep/internal/provision"
)

func newValidateCommand(app *App) *cobra.Command {
	var flags specFlags

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a job spec without provisioning anything",
		Long: `Decode the job spec, check it against the job spec schema and resolve
its project type and action. Nothing is downloaded and the engine is not
started. Exits 2 when the job spec is invalid.`,
		Example: `  boltstep validate --spec job.yaml
  boltstep validate --spec - --format toml < job.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validateSpec(cmd.Context(), app, flags)
		},
	}

	validateCmd.Flags().StringVarP(&flags.source, "spec", "s", "", "job spec file, - for stdin, or metadata")
	validateCmd.Flags().StringVar(&flags.format, "format", "", "job spec format: yaml, json or toml")
	return validateCmd
}

func validateSpec(ctx context.Context, app *App, flags specFlags) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	spec, err := flags.load(ctx, app.stdin, app.metadataClient(cfg))
	if err != nil {
		return app.fail(specError(err, flags.source))
	}
	plan, _, err := pipeline.Prepare(spec, cfg.Engine.ConfigScope)
	if err != nil {
		return app.fail(pipelineError(err))
	}

	fmt.Fprintln(app.stdout, checkMark()+" job spec is valid")
	printPlan(app, spec, plan)
	return nil
}

func printPlan(app *App, spec *jobspec.Spec, plan *jobspec.Plan) {
	row := func(key, value string) {
		fmt.Fprintf(app.stdout, "  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-10s", key+":")), value)
	}

	row("action", fmt.Sprintf("%s %s", plan.Action, plan.Name))
	project := fmt.Sprintf("%s %s", plan.Project.Kind, provision.RedactSource(plan.Project.Source))
	if plan.Project.Version != "" {
		project += " @ " + plan.Project.Version
	}
	row("project", project)

	targets := spec.StringSlice(jobspec.PathTargets)
	if len(targets) == 0 {
		row("targets", SubtitleStyle.Render("(none)"))
	} else {
		row("targets", fmt.Sprintf("%d %v", len(targets), targets))
	}

	if spec.Get(jobspec.PathInventory).IsSet() {
		row("inventory", "inline")
	} else {
		row("inventory", "project inventory.yaml")
	}
}
