// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for boltstep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "boltstep",
		Short: "Run one Puppet Bolt action as an orchestration step",
		Long: TitleStyle.Render("boltstep") + SubtitleStyle.Render(" - run one Bolt action as an orchestration step") + `

boltstep provisions an automation project (tarball or git), resolves its
inventory, writes the engine configuration and runs exactly one task,
plan or apply with the bolt CLI. The engine's JSON result is delivered
unchanged and its exit code becomes boltstep's.

` + SubtitleStyle.Render("Examples:") + `
  boltstep run --spec job.yaml        Run the job in job.yaml
  boltstep validate --spec job.yaml   Check a job spec
  boltstep render --spec job.yaml     Print the engine commands
  boltstep config show                Show the effective settings`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging and detailed errors")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/boltstep/config.cue)")

	rootCmd.AddCommand(newRunCommand(app))
	rootCmd.AddCommand(newValidateCommand(app))
	rootCmd.AddCommand(newRenderCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and returns the process exit code. It is called by
// main.main.
func Execute() int {
	rootCmd := NewRootCommand(NewApp(Dependencies{}))
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	)
	return exitCode(err)
}

// errorHandler prints errors cobra produced (bad flags, unknown commands).
// ExitErrors were already reported by the command.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
