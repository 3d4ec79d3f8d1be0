// SPDX-License-Identifier: MPL-2.0

// Package workspace manages the scratch directory that holds everything a
// single run produces: the provisioned project, key material, the SSH
// configuration and the engine artifacts.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/boltstep/boltstep/pkg/types"
)

const (
	// SecretFileMode is the mode of key material written into the workspace.
	SecretFileMode os.FileMode = 0o600
	// ArtifactFileMode is the mode of non-secret artifacts.
	ArtifactFileMode os.FileMode = 0o644

	keysDirMode os.FileMode = 0o700
	dirPrefix               = "boltstep-"
)

// ErrEmptyRunID is returned when a workspace is created without a run ID.
var ErrEmptyRunID = errors.New("workspace requires a run ID")

// Workspace is an exclusive scratch directory for one run.
type Workspace struct {
	root  types.FilesystemPath
	runID string
	keep  bool
}

// New creates a fresh workspace under parent (os.TempDir when empty). The
// directory name embeds runID so concurrent runs never share a workspace.
func New(parent, runID string, keep bool) (*Workspace, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, ErrEmptyRunID
	}
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace parent %s: %w", parent, err)
		}
	}

	dir, err := os.MkdirTemp(parent, dirPrefix+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}

	return &Workspace{root: types.FilesystemPath(abs), runID: runID, keep: keep}, nil
}

// Layout describes a workspace rooted at root without creating anything on
// disk. Cleanup on it is a no-op. It is used to show the paths a run would
// use.
func Layout(root, runID string) *Workspace {
	return &Workspace{root: types.FilesystemPath(root), runID: runID, keep: true}
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root.String() }

// RunID returns the run identifier the workspace was created for.
func (w *Workspace) RunID() string { return w.runID }

// Kept reports whether Cleanup leaves the directory in place.
func (w *Workspace) Kept() bool { return w.keep }

// ProjectDir is where the automation project is provisioned.
func (w *Workspace) ProjectDir() string { return w.path("project") }

// DownloadPath is the temporary file a project archive is downloaded to.
func (w *Workspace) DownloadPath() string { return w.path("project.archive") }

// ProjectKeyPath holds the key used to clone the project.
func (w *Workspace) ProjectKeyPath() string { return w.path("keys", "project") }

// TransportKeyPath holds the key the engine uses to reach targets.
func (w *Workspace) TransportKeyPath() string { return w.path("keys", "transport") }

// SSHConfigPath is the transient SSH client configuration.
func (w *Workspace) SSHConfigPath() string { return w.path("ssh_config") }

// InventoryPath is where an inline inventory is materialised.
func (w *Workspace) InventoryPath() string { return w.path("inventory.yaml") }

// ParamsPath is the parameters artifact.
func (w *Workspace) ParamsPath() string { return w.path("params.json") }

// TargetsPath is the targets artifact.
func (w *Workspace) TargetsPath() string { return w.path("targets") }

// ManifestPath is the synthesised apply manifest.
func (w *Workspace) ManifestPath() string { return w.path("apply.pp") }

// HomeDir is the HOME directory the engine runs with when its configuration
// is run-scoped.
func (w *Workspace) HomeDir() string { return w.path("home") }

// LinkUserSSH makes userHome/.ssh visible as HomeDir()/.ssh so an engine
// running with the workspace HOME keeps the operator's known_hosts, keys
// and ssh config. It reports false when userHome has no .ssh directory.
// The link, not its target, is removed by Cleanup.
func (w *Workspace) LinkUserSSH(userHome string) (bool, error) {
	src := filepath.Join(userHome, ".ssh")
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", src, err)
	}
	if !info.IsDir() {
		return false, nil
	}

	if err := os.MkdirAll(w.HomeDir(), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", w.HomeDir(), err)
	}
	dst := filepath.Join(w.HomeDir(), ".ssh")
	if err := os.Symlink(src, dst); err != nil {
		return false, fmt.Errorf("link %s: %w", dst, err)
	}
	return true, nil
}

// WriteFile writes a non-secret artifact, creating parent directories.
func (w *Workspace) WriteFile(path string, data []byte) error {
	if err := w.contains(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, ArtifactFileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteSecret writes key material readable only by the current user. A
// trailing newline is added when missing since OpenSSH rejects keys without
// one.
func (w *Workspace) WriteSecret(path, secret string) error {
	if err := w.contains(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), keysDirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if !strings.HasSuffix(secret, "\n") {
		secret += "\n"
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, SecretFileMode)
	if err != nil {
		return fmt.Errorf("write secret %s: %w", path, err)
	}
	if _, err := f.WriteString(secret); err != nil {
		_ = f.Close()
		return fmt.Errorf("write secret %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write secret %s: %w", path, err)
	}
	// OpenFile honours umask; a pre-existing file keeps its old mode.
	if err := os.Chmod(path, SecretFileMode); err != nil {
		return fmt.Errorf("restrict secret %s: %w", path, err)
	}
	return nil
}

// Cleanup removes the workspace unless it was created with keep.
func (w *Workspace) Cleanup() error {
	if w.keep {
		return nil
	}
	if err := os.RemoveAll(w.Root()); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Root(), err)
	}
	return nil
}

func (w *Workspace) path(elem ...string) string {
	return w.root.Join(elem...).String()
}

func (w *Workspace) contains(path string) error {
	if !w.root.Contains(path) {
		return fmt.Errorf("path %s is outside workspace %s", path, w.Root())
	}
	return nil
}
