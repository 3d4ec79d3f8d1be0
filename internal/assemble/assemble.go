// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/workspace"
)

const (
	// ScopeRun writes the engine configuration under the run workspace and
	// runs the engine with HOME pointing there.
	ScopeRun ConfigScope = "run"
	// ScopeGlobal writes the engine configuration to the invoking user's
	// home directory.
	ScopeGlobal ConfigScope = "global"

	// EmptyParams is the parameters artifact when the job spec has none.
	EmptyParams = "{}"
)

// ErrInvalidConfigScope is the sentinel wrapped by InvalidConfigScopeError.
var ErrInvalidConfigScope = errors.New("invalid engine config scope")

// configRelPath is where the engine reads user-level defaults, relative to HOME.
var configRelPath = filepath.Join(".puppetlabs", "etc", "bolt", "bolt-defaults.yaml")

type (
	// ConfigScope selects where the engine configuration is written.
	ConfigScope string

	// InvalidConfigScopeError is returned for scopes other than run or global.
	InvalidConfigScopeError struct {
		Value ConfigScope
	}

	// Options configures Assemble.
	Options struct {
		Scope ConfigScope
		// UserHome is the invoking user's home directory, used with ScopeGlobal.
		// Empty means os.UserHomeDir.
		UserHome string
	}

	// Artifacts lists the files written for a run.
	Artifacts struct {
		ConfigPath       string
		ParamsPath       string
		TargetsPath      string
		TransportKeyPath string
		// Config is the merged engine configuration.
		Config map[string]any
	}
)

// Error implements the error interface.
func (e *InvalidConfigScopeError) Error() string {
	return fmt.Sprintf("invalid engine config scope %q (valid: %s, %s)", e.Value, ScopeRun, ScopeGlobal)
}

// Unwrap returns ErrInvalidConfigScope for errors.Is() compatibility.
func (e *InvalidConfigScopeError) Unwrap() error { return ErrInvalidConfigScope }

// String returns the scope name.
func (s ConfigScope) String() string { return string(s) }

// Validate returns an error if the scope is not run or global.
func (s ConfigScope) Validate() error {
	switch s {
	case ScopeRun, ScopeGlobal:
		return nil
	default:
		return &InvalidConfigScopeError{Value: s}
	}
}

// ConfigPath returns the engine configuration path for a HOME directory.
func ConfigPath(home string) string {
	return filepath.Join(home, configRelPath)
}

// Assemble writes the transport key, engine configuration, parameters and
// targets for a run. Any I/O failure is returned and is fatal to the run.
func Assemble(spec *jobspec.Spec, ws *workspace.Workspace, opts Options) (*Artifacts, error) {
	scope := opts.Scope
	if scope == "" {
		scope = ScopeRun
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	art := &Artifacts{
		ParamsPath:  ws.ParamsPath(),
		TargetsPath: ws.TargetsPath(),
	}

	if key := spec.Get(jobspec.PathTransportSSHKey); key.IsSet() {
		art.TransportKeyPath = ws.TransportKeyPath()
		if err := ws.WriteSecret(art.TransportKeyPath, key.String()); err != nil {
			return nil, fmt.Errorf("write transport key: %w", err)
		}
	}

	overrides, err := OverrideLayer(spec)
	if err != nil {
		return nil, err
	}
	art.Config = Merge(TransportLayer(spec, art.TransportKeyPath), overrides, SafetyLayer())

	home := ws.HomeDir()
	if scope == ScopeGlobal {
		home = opts.UserHome
		if home == "" {
			if home, err = os.UserHomeDir(); err != nil {
				return nil, fmt.Errorf("resolve home directory: %w", err)
			}
		}
	}
	art.ConfigPath = ConfigPath(home)
	if err := writeConfig(art.ConfigPath, art.Config); err != nil {
		return nil, err
	}

	params := EmptyParams
	if p := spec.Get(jobspec.PathParameters); p.IsSet() {
		params = p.Raw()
	}
	if err := ws.WriteFile(art.ParamsPath, []byte(params)); err != nil {
		return nil, fmt.Errorf("write parameters: %w", err)
	}

	targets := strings.Join(spec.StringSlice(jobspec.PathTargets), "\n")
	if err := ws.WriteFile(art.TargetsPath, []byte(targets)); err != nil {
		return nil, fmt.Errorf("write targets: %w", err)
	}

	return art, nil
}

// EncodeConfig renders the engine configuration as YAML.
func EncodeConfig(cfg map[string]any) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode engine config: %w", err)
	}
	return data, nil
}

func writeConfig(path string, cfg map[string]any) error {
	data, err := EncodeConfig(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create engine config directory: %w", err)
	}
	// The config may reference key paths; keep it private to the user.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write engine config: %w", err)
	}
	return nil
}
