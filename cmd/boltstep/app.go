// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/boltstep/boltstep/internal/config"
	"github.com/boltstep/boltstep/internal/engine"
	"github.com/boltstep/boltstep/internal/metadata"
	"github.com/boltstep/boltstep/internal/provision"
)

type (
	// ConfigProvider loads settings using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App wires CLI services and shared dependencies. Every command handler
	// receives an App reference.
	App struct {
		Config      ConfigProvider
		ExecCommand engine.ExecCommandFunc
		GitClone    provision.CloneFunc
		HTTPClient  *http.Client
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer

		// Set by persistent flags.
		configFile string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config      ConfigProvider
		ExecCommand engine.ExecCommandFunc
		GitClone    provision.CloneFunc
		HTTPClient  *http.Client
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
	}
)

// NewApp builds an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:      deps.Config,
		ExecCommand: deps.ExecCommand,
		GitClone:    deps.GitClone,
		HTTPClient:  deps.HTTPClient,
		stdin:       deps.Stdin,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.HTTPClient == nil {
		app.HTTPClient = http.DefaultClient
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads settings honoring the --config flag. Failures are
// rendered and returned as an ExitError with the configuration exit code.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configFile})
	if err != nil {
		return nil, a.fail(configError(err))
	}
	return cfg, nil
}

// logger returns the stderr logger for a run. --verbose forces debug.
func (a *App) logger(cfg *config.Config) *log.Logger {
	level := cfg.Log.Level.Level()
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix:          config.AppName,
		Level:           level,
		ReportTimestamp: true,
	})
}

// metadataClient returns a client for the configured metadata service, or
// nil when none is configured.
func (a *App) metadataClient(cfg *config.Config) *metadata.Client {
	if cfg.Metadata.URL == "" {
		return nil
	}
	return metadata.NewClient(cfg.Metadata.URL,
		metadata.WithHTTPClient(a.HTTPClient),
		metadata.WithToken(cfg.Metadata.Token),
		metadata.WithUserAgent(config.AppName+"/"+Version),
	)
}

// fail renders svcErr and returns the ExitError for it.
func (a *App) fail(svcErr *ServiceError) error {
	return renderServiceError(a.stderr, svcErr, a.verbose)
}
