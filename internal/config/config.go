// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/boltstep/boltstep/internal/issue"
	"github.com/boltstep/boltstep/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "boltstep"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. BOLTSTEP_ENGINE_BINARY.
	EnvPrefix = "BOLTSTEP"
)

//go:embed config_schema.cue
var configSchema string

// configDirOverride lets tests bypass os.UserHomeDir, which does not honor
// HOME on every platform.
var configDirOverride string

// SetConfigDirOverride sets a custom config directory path for tests.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}

// ConfigDir returns the boltstep configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS
// and $XDG_CONFIG_HOME (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var base string
	switch platform.Current() {
	case platform.Windows:
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// Keys lists every setting in dotted form.
func Keys() []string {
	return []string{
		"engine.binary",
		"engine.config_scope",
		"engine.helper_module",
		"workspace.dir",
		"workspace.keep",
		"metadata.url",
		"metadata.token",
		"output.key",
		"log.level",
		"run.timeout",
	}
}

// newViper returns a Viper preloaded with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("engine.binary", defaults.Engine.Binary)
	v.SetDefault("engine.config_scope", string(defaults.Engine.ConfigScope))
	v.SetDefault("engine.helper_module", defaults.Engine.HelperModule)
	v.SetDefault("workspace.dir", defaults.Workspace.Dir)
	v.SetDefault("workspace.keep", defaults.Workspace.Keep)
	v.SetDefault("metadata.url", defaults.Metadata.URL)
	v.SetDefault("metadata.token", defaults.Metadata.Token)
	v.SetDefault("output.key", defaults.Output.Key)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("run.timeout", defaults.Run.Timeout.String())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadWithOptions resolves the config file, merges it over the defaults and
// applies environment overrides. A missing default config file is not an
// error; a missing explicit one is.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	path := opts.ConfigFilePath
	if path == "" {
		dir := opts.ConfigDirPath
		if dir == "" {
			var err error
			if dir, err = ConfigDir(); err != nil {
				return nil, "", err
			}
		}
		if candidate := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt); fileExists(candidate) {
			path = candidate
		}
	} else if !fileExists(path) {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'boltstep config show' to see the effective configuration").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	if path != "" {
		settings, err := decodeCUEFile(path)
		if err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
			WithIssue(issue.ConfigLoadFailedId).
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("See 'boltstep config --help' for the available settings").
				Wrap(err).
				BuildError()
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, "", fmt.Errorf("failed to merge config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(path).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables as well as the config file").
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default settings to the config directory
// unless a config file already exists. It returns the file path.
func CreateDefaultConfig() (string, error) {
	path, err := ConfigFilePath()
	if err != nil {
		return "", err
	}
	if fileExists(path) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config file. The metadata token is never
// written.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// boltstep configuration\n\n")

	sb.WriteString("engine: {\n")
	fmt.Fprintf(&sb, "\tbinary:        %q\n", cfg.Engine.Binary)
	fmt.Fprintf(&sb, "\tconfig_scope:  %q\n", cfg.Engine.ConfigScope)
	fmt.Fprintf(&sb, "\thelper_module: %q\n", cfg.Engine.HelperModule)
	sb.WriteString("}\n")

	sb.WriteString("\nworkspace: {\n")
	if cfg.Workspace.Dir != "" {
		fmt.Fprintf(&sb, "\tdir:  %q\n", cfg.Workspace.Dir)
	}
	fmt.Fprintf(&sb, "\tkeep: %v\n", cfg.Workspace.Keep)
	sb.WriteString("}\n")

	if cfg.Metadata.URL != "" {
		fmt.Fprintf(&sb, "\nmetadata: url: %q\n", cfg.Metadata.URL)
	}

	fmt.Fprintf(&sb, "\noutput: key: %q\n", cfg.Output.Key)
	fmt.Fprintf(&sb, "log: level: %q\n", cfg.Log.Level)
	if cfg.Run.Timeout > 0 {
		fmt.Fprintf(&sb, "run: timeout: %q\n", cfg.Run.Timeout.String())
	}
	return sb.String()
}
