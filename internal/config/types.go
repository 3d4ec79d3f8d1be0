// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boltstep/boltstep/internal/assemble"
	"github.com/boltstep/boltstep/internal/dispatch"
	"github.com/boltstep/boltstep/internal/engine"
	"github.com/boltstep/boltstep/internal/metadata"
)

const (
	// LogLevelDebug logs every engine invocation and artifact path.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs stage progress.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only errors.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is the sentinel error wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidTimeout is returned for negative run timeouts.
	ErrInvalidTimeout = errors.New("invalid run timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the boltstep settings.
	Config struct {
		Engine    EngineConfig    `json:"engine" mapstructure:"engine"`
		Workspace WorkspaceConfig `json:"workspace" mapstructure:"workspace"`
		Metadata  MetadataConfig  `json:"metadata" mapstructure:"metadata"`
		Output    OutputConfig    `json:"output" mapstructure:"output"`
		Log       LogConfig       `json:"log" mapstructure:"log"`
		Run       RunConfig       `json:"run" mapstructure:"run"`
	}

	// EngineConfig configures the automation engine.
	EngineConfig struct {
		// Binary is the engine executable name or path.
		Binary string `json:"binary" mapstructure:"binary"`
		// ConfigScope selects where the engine configuration is written.
		ConfigScope assemble.ConfigScope `json:"config_scope" mapstructure:"config_scope"`
		// HelperModule provides loadjson for apply actions.
		HelperModule string `json:"helper_module" mapstructure:"helper_module"`
	}

	// WorkspaceConfig configures per-run workspaces.
	WorkspaceConfig struct {
		Dir  string `json:"dir" mapstructure:"dir"`
		Keep bool   `json:"keep" mapstructure:"keep"`
	}

	// MetadataConfig locates the metadata service.
	MetadataConfig struct {
		URL   string `json:"url" mapstructure:"url"`
		Token string `json:"token" mapstructure:"token"`
	}

	// OutputConfig configures the metadata output sink.
	OutputConfig struct {
		Key string `json:"key" mapstructure:"key"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// RunConfig bounds a run.
	RunConfig struct {
		// Timeout cancels the run when positive.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	}
)

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the level name.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts to a charmbracelet/log level.
func (l LogLevel) Level() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid checks the constraints the CUE schema cannot see, e.g. values
// that arrived through environment variables.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if err := c.Engine.ConfigScope.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Engine.Binary) == "" {
		errs = append(errs, errors.New("engine.binary must not be empty"))
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Run.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Run.Timeout))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Binary:       engine.DefaultBinary,
			ConfigScope:  assemble.ScopeRun,
			HelperModule: dispatch.DefaultHelperModule,
		},
		Output: OutputConfig{Key: metadata.DefaultOutputKey},
		Log:    LogConfig{Level: LogLevelInfo},
	}
}
