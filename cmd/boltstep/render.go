// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"

	"github.com/boltstep/boltstep/internal/dispatch"
	"github.com/boltstep/boltstep/internal/inventory"
	"github.com/boltstep/boltstep/internal/pipeline"
	"github.com/boltstep/boltstep/internal/workspace"
)

// renderWorkspaceRoot stands in for the run workspace in rendered commands.
const renderWorkspaceRoot = "<workspace>"

// discardWriter satisfies the artifact writers without touching disk.
type discardWriter struct{}

func (discardWriter) WriteFile(string, []byte) error { return nil }

func newRenderCommand(app *App) *cobra.Command {
	var flags specFlags

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Print the engine commands a run would execute",
		Long: `Print, as shell-quoted command lines, the engine commands 'boltstep run'
would execute for the job spec. Paths inside the run workspace are shown
under ` + renderWorkspaceRoot + `. Nothing is provisioned or executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderCommands(cmd.Context(), app, flags)
		},
	}

	renderCmd.Flags().StringVarP(&flags.source, "spec", "s", "", "job spec file, - for stdin, or metadata")
	renderCmd.Flags().StringVar(&flags.format, "format", "", "job spec format: yaml, json or toml")
	return renderCmd
}

func renderCommands(ctx context.Context, app *App, flags specFlags) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	spec, err := flags.load(ctx, app.stdin, app.metadataClient(cfg))
	if err != nil {
		return app.fail(specError(err, flags.source))
	}
	plan, action, err := pipeline.Prepare(spec, cfg.Engine.ConfigScope)
	if err != nil {
		return app.fail(pipelineError(err))
	}

	ws := workspace.Layout(renderWorkspaceRoot, "render")
	cli := pipeline.NewEngine(ws, plan.Project.Kind, pipeline.Options{
		EngineBinary: cfg.Engine.Binary,
		ConfigScope:  cfg.Engine.ConfigScope,
		Stderr:       app.stderr,
	})

	inv, err := inventory.Resolve(spec, ws.ProjectDir(), ws.InventoryPath(), discardWriter{})
	if err != nil {
		return app.fail(pipelineError(err))
	}
	d := dispatch.New(cli, discardWriter{}, dispatch.WithHelperModule(cfg.Engine.HelperModule))
	args, err := d.Args(action, dispatch.RunContext{
		ProjectDir:    ws.ProjectDir(),
		InventoryPath: inv.Path,
		ParamsPath:    ws.ParamsPath(),
		TargetsPath:   ws.TargetsPath(),
		ManifestPath:  ws.ManifestPath(),
	})
	if err != nil {
		return app.fail(pipelineError(err))
	}

	w := app.stdout
	for _, kv := range cli.Env() {
		fmt.Fprintf(w, "# env %s\n", kv)
	}
	if err := writeCommand(w, cli.CommandLine(cli.ModuleInstallArgs(ws.ProjectDir()))); err != nil {
		return err
	}
	if _, ok := action.(dispatch.Apply); ok {
		fmt.Fprintf(w, "# only when %s is not declared in %s\n", d.HelperModule(), dispatch.ProjectFileName)
		if err := writeCommand(w, cli.CommandLine(cli.ModuleAddArgs(d.HelperModule(), ws.ProjectDir()))); err != nil {
			return err
		}
	}
	return writeCommand(w, cli.CommandLine(args))
}

// writeCommand prints argv as a single bash command line.
func writeCommand(w io.Writer, argv []string) error {
	words := make([]string, len(argv))
	for i, arg := range argv {
		quoted, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return fmt.Errorf("quote %q: %w", arg, err)
		}
		words[i] = quoted
	}
	_, err := fmt.Fprintln(w, strings.Join(words, " "))
	return err
}
