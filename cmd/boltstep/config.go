// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boltstep/boltstep/internal/config"
)

// newConfigCommand creates the `boltstep config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage boltstep settings",
		Long: `Manage boltstep settings.

Settings are read from, in increasing precedence: built-in defaults, the
config file, and ` + config.EnvPrefix + `_* environment variables (for example
` + config.EnvPrefix + `_ENGINE_BINARY for engine.binary).

The config file is stored in:
  - Linux: ~/.config/boltstep/config.cue
  - macOS: ~/Library/Application Support/boltstep/config.cue
  - Windows: %APPDATA%\boltstep\config.cue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective settings as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", checkMark(), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: app.configFile})
	if err != nil {
		return app.fail(configError(err))
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		path = SubtitleStyle.Render("(using defaults)")
	}
	fmt.Fprintf(w, "%s: %s\n\n", KeyStyle.Render("Config file"), path)

	token := ""
	if cfg.Metadata.Token != "" {
		token = "(set)"
	}
	values := map[string]string{
		"engine.binary":        cfg.Engine.Binary,
		"engine.config_scope":  cfg.Engine.ConfigScope.String(),
		"engine.helper_module": cfg.Engine.HelperModule,
		"workspace.dir":        cfg.Workspace.Dir,
		"workspace.keep":       fmt.Sprint(cfg.Workspace.Keep),
		"metadata.url":         cfg.Metadata.URL,
		"metadata.token":       token,
		"output.key":           cfg.Output.Key,
		"log.level":            cfg.Log.Level.String(),
		"run.timeout":          cfg.Run.Timeout.String(),
	}
	for _, key := range config.Keys() {
		value := values[key]
		if value == "" {
			value = SubtitleStyle.Render("(unset)")
		} else {
			value = SuccessStyle.Render(value)
		}
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(key), value)
	}
	return nil
}
