// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/boltstep/boltstep/internal/assemble"
	"github.com/boltstep/boltstep/internal/engine"
	"github.com/boltstep/boltstep/internal/issue"
	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/output"
	"github.com/boltstep/boltstep/internal/testutil"
	"github.com/boltstep/boltstep/internal/testutil/enginetest"
	"github.com/boltstep/boltstep/pkg/types"
)

func TestHelperProcess(t *testing.T) { enginetest.HelperProcess() }

const projectYAML = "name: site\nmodules: []\n"

func mustSpec(t *testing.T, doc string) *jobspec.Spec {
	t.Helper()

	spec, err := jobspec.FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	return spec
}

func tarballSpec(t *testing.T, action, name, extra string) *jobspec.Spec {
	t.Helper()

	doc := `{"project":{"type":"tarball","source":"` + testutil.MustWriteProjectArchive(t, nil) + `"},` +
		`"type":"` + action + `","name":"` + name + `","targets":["web1","web2"]`
	if extra != "" {
		doc += "," + extra
	}
	return mustSpec(t, doc+"}")
}

func testOptions(t *testing.T, rec *enginetest.Recorder) Options {
	t.Helper()

	return Options{
		WorkspaceDir:  t.TempDir(),
		KeepWorkspace: true,
		RunID:         "test",
		UserHome:      t.TempDir(),
		ExecCommand:   rec.CommandFunc(),
		Stderr:        io.Discard,
	}
}

func bufferSink(buf *bytes.Buffer) output.Sink {
	return &output.WriterSink{W: buf, Name: output.TargetStdout}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestRunTask(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder().On("task run", enginetest.Response{Stdout: `{"items":[]}`})
	var out bytes.Buffer

	outcome, err := Run(context.Background(),
		tarballSpec(t, "task", "pkg::install", `"parameters":{"x":1}`),
		bufferSink(&out), testOptions(t, rec))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := out.String(); got != `{"items":[]}` {
		t.Errorf("output = %q", got)
	}
	if outcome.ExitCode() != types.ExitSuccess {
		t.Errorf("ExitCode() = %d, want 0", outcome.ExitCode())
	}

	cmds := rec.Commands()
	if len(cmds) != 2 {
		t.Fatalf("engine calls = %v, want module install then task run", cmds)
	}
	if !strings.HasPrefix(cmds[0], "bolt module install --project "+outcome.Project.Dir) {
		t.Errorf("first call = %q", cmds[0])
	}
	if !strings.HasPrefix(cmds[1], "bolt task run pkg::install --project "+outcome.Project.Dir) {
		t.Errorf("second call = %q", cmds[1])
	}

	if got := readFile(t, outcome.Artifacts.ParamsPath); got != `{"x":1}` {
		t.Errorf("params = %q", got)
	}
	if got := readFile(t, outcome.Artifacts.TargetsPath); got != "web1\nweb2" {
		t.Errorf("targets = %q", got)
	}
	if want := filepath.Join(outcome.Project.Dir, "inventory.yaml"); outcome.Inventory.Path != want {
		t.Errorf("inventory = %q, want %q", outcome.Inventory.Path, want)
	}
	if want := assemble.ConfigPath(filepath.Join(outcome.Workspace, "home")); outcome.Artifacts.ConfigPath != want {
		t.Errorf("config path = %q, want %q", outcome.Artifacts.ConfigPath, want)
	}
}

func TestRunApply(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder().On("apply", enginetest.Response{Stdout: "[]"})
	var out bytes.Buffer

	outcome, err := Run(context.Background(),
		tarballSpec(t, "apply", "site::web", `"parameters":{"x":1}`),
		bufferSink(&out), testOptions(t, rec))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	cmds := rec.Commands()
	if len(cmds) != 3 {
		t.Fatalf("engine calls = %v, want install, add, apply", cmds)
	}
	if !strings.HasPrefix(cmds[1], "bolt module add puppetlabs-stdlib") {
		t.Errorf("second call = %q", cmds[1])
	}
	manifestPath := filepath.Join(outcome.Workspace, "apply.pp")
	if !strings.HasPrefix(cmds[2], "bolt apply "+manifestPath) {
		t.Errorf("third call = %q", cmds[2])
	}

	manifest := readFile(t, manifestPath)
	if !strings.Contains(manifest, "class { 'site::web':") {
		t.Errorf("manifest = %q", manifest)
	}
	if !strings.Contains(manifest, "loadjson('"+outcome.Artifacts.ParamsPath+"')") {
		t.Errorf("manifest does not load parameters: %q", manifest)
	}
	if got := readFile(t, outcome.Artifacts.ParamsPath); got != `{"x":1}` {
		t.Errorf("params = %q", got)
	}
	if out.String() != "[]" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunRejectsInvalidSpecBeforeProvisioning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown action", `{"project":{"type":"tarball","source":"/p.tgz"},"type":"bogus","name":"x"}`},
		{"unknown project type", `{"project":{"type":"svn","source":"/p"},"type":"task","name":"x"}`},
		{"missing name", `{"project":{"type":"tarball","source":"/p.tgz"},"type":"task"}`},
		{"missing project", `{"type":"task","name":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := enginetest.NewRecorder()
			opts := testOptions(t, rec)
			var out bytes.Buffer

			outcome, err := Run(context.Background(), mustSpec(t, tt.doc), bufferSink(&out), opts)
			if err == nil {
				t.Fatal("Run() error = nil, want config error")
			}
			if outcome != nil {
				t.Errorf("outcome = %+v, want nil", outcome)
			}

			var se *StageError
			if !errors.As(err, &se) || se.Stage != StageConfig {
				t.Fatalf("error = %v, want config stage error", err)
			}
			if se.ExitCode() != types.ExitConfigError {
				t.Errorf("ExitCode() = %d, want %d", se.ExitCode(), types.ExitConfigError)
			}
			if !errors.Is(err, jobspec.ErrInvalidJobSpec) {
				t.Errorf("errors.Is(err, ErrInvalidJobSpec) = false")
			}
			rec.AssertInvocationCount(t, 0)

			entries, rerr := os.ReadDir(opts.WorkspaceDir)
			if rerr != nil {
				t.Fatal(rerr)
			}
			if len(entries) != 0 {
				t.Errorf("workspace created for invalid spec: %v", entries)
			}
		})
	}
}

func TestRunInvalidConfigScope(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder()
	opts := testOptions(t, rec)
	opts.ConfigScope = "project"

	_, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&bytes.Buffer{}), opts)
	if !errors.Is(err, assemble.ErrInvalidConfigScope) {
		t.Fatalf("error = %v, want ErrInvalidConfigScope", err)
	}
	if ExitCodeOf(err) != types.ExitConfigError {
		t.Errorf("ExitCodeOf() = %d, want %d", ExitCodeOf(err), types.ExitConfigError)
	}
	rec.AssertInvocationCount(t, 0)
}

func TestRunPropagatesEngineExitCode(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder().On("plan run", enginetest.Response{ExitCode: 2, Stdout: `{"kind":"bolt/run-failure"}`})
	var out bytes.Buffer

	outcome, err := Run(context.Background(), tarballSpec(t, "plan", "site::deploy", ""), bufferSink(&out), testOptions(t, rec))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.ExitCode() != 2 {
		t.Errorf("ExitCode() = %d, want 2", outcome.ExitCode())
	}
	if out.String() != `{"kind":"bolt/run-failure"}` {
		t.Errorf("output = %q, want engine stdout delivered on failure", out.String())
	}
}

func TestRunScopesEngineHomeToWorkspace(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder().On("task run", enginetest.Response{EchoEnv: "HOME"})
	var out bytes.Buffer

	outcome, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&out), testOptions(t, rec))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	home := filepath.Join(outcome.Workspace, "home")
	if got := strings.TrimSpace(out.String()); got != "HOME="+home {
		t.Errorf("engine saw %q, want HOME=%s", got, home)
	}
	if _, err := os.Stat(assemble.ConfigPath(home)); err != nil {
		t.Errorf("engine config not written under workspace home: %v", err)
	}
}

func TestRunScopedHomeKeepsUserSSHDir(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}

	rec := enginetest.NewRecorder()
	opts := testOptions(t, rec)
	userSSH := filepath.Join(opts.UserHome, ".ssh")
	if err := os.MkdirAll(userSSH, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(userSSH, "known_hosts"), []byte("web1 ssh-ed25519 AAAA\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	outcome, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&bytes.Buffer{}), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	engineSSH := filepath.Join(outcome.Workspace, "home", ".ssh")
	if got := readFile(t, filepath.Join(engineSSH, "known_hosts")); got != "web1 ssh-ed25519 AAAA\n" {
		t.Errorf("engine known_hosts = %q", got)
	}
}

func TestRunScopedHomeWithoutUserSSHDir(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder()
	outcome, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&bytes.Buffer{}), testOptions(t, rec))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Lstat(filepath.Join(outcome.Workspace, "home", ".ssh")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("workspace home has .ssh without a user ssh dir: %v", err)
	}
}

func TestRunGlobalScopeWritesUserConfig(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder()
	opts := testOptions(t, rec)
	opts.ConfigScope = assemble.ScopeGlobal

	outcome, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&bytes.Buffer{}), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := assemble.ConfigPath(opts.UserHome); outcome.Artifacts.ConfigPath != want {
		t.Errorf("config path = %q, want %q", outcome.Artifacts.ConfigPath, want)
	}
}

func TestRunInlineInventory(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder()
	spec := tarballSpec(t, "task", "x", `"inventory":"targets:\n  - uri: web1\n"`)

	outcome, err := Run(context.Background(), spec, bufferSink(&bytes.Buffer{}), testOptions(t, rec))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := filepath.Join(outcome.Workspace, "inventory.yaml"); outcome.Inventory.Path != want {
		t.Errorf("inventory = %q, want %q", outcome.Inventory.Path, want)
	}
	if got := readFile(t, outcome.Inventory.Path); got != "targets:\n  - uri: web1\n" {
		t.Errorf("inventory content = %q", got)
	}
	if last := rec.Last(); last == nil || !strings.Contains(strings.Join(last.Args, " "), "--inventoryfile "+outcome.Inventory.Path) {
		t.Errorf("engine not pointed at inline inventory: %v", rec.Commands())
	}
}

func TestRunGitProject(t *testing.T) {
	t.Parallel()

	fixture := t.TempDir()
	repo, err := git.PlainInit(fixture, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fixture, "bolt-project.yaml"), []byte(projectYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("bolt-project.yaml"); err != nil {
		t.Fatal(err)
	}
	head, err := wt.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "ops", Email: "ops@example.com"}})
	if err != nil {
		t.Fatal(err)
	}

	rec := enginetest.NewRecorder().On("task run", enginetest.Response{EchoEnv: "GIT_SSH_COMMAND"})
	opts := testOptions(t, rec)
	opts.GitClone = func(_ context.Context, dest string, _ *git.CloneOptions) (*git.Repository, error) {
		if err := os.CopyFS(dest, os.DirFS(fixture)); err != nil {
			return nil, err
		}
		return git.PlainOpen(dest)
	}

	spec := mustSpec(t, `{"project":{"type":"git","source":"git@example.com:ops/site.git"},"type":"task","name":"x","targets":["web1"]}`)
	var out bytes.Buffer
	outcome, err := Run(context.Background(), spec, bufferSink(&out), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Project.Commit != head.String() {
		t.Errorf("commit = %s, want %s", outcome.Project.Commit, head)
	}
	want := "GIT_SSH_COMMAND=ssh -F " + filepath.Join(outcome.Workspace, "ssh_config")
	if got := strings.TrimSpace(out.String()); got != want {
		t.Errorf("engine env = %q, want %q", got, want)
	}
}

func TestRunModuleInstallFailure(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder().On("module install", enginetest.Response{ExitCode: 1, Stderr: "forge unreachable"})

	outcome, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&bytes.Buffer{}), testOptions(t, rec))
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageProvision {
		t.Fatalf("error = %v, want provision stage error", err)
	}
	if se.IssueID() != issue.ModuleInstallFailedId {
		t.Errorf("IssueID() = %d, want %d", se.IssueID(), issue.ModuleInstallFailedId)
	}
	if se.ExitCode() != types.ExitFailure {
		t.Errorf("ExitCode() = %d, want 1", se.ExitCode())
	}
	if outcome == nil || outcome.Result != nil {
		t.Errorf("outcome = %+v, want partial outcome without result", outcome)
	}
	rec.AssertInvocationCount(t, 1)
}

func TestRunMissingEngine(t *testing.T) {
	t.Parallel()

	opts := Options{
		EngineBinary:  filepath.Join(t.TempDir(), "no-such-bolt"),
		WorkspaceDir:  t.TempDir(),
		RunID:         "missing",
		Stderr:        io.Discard,
		KeepWorkspace: false,
	}
	_, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), bufferSink(&bytes.Buffer{}), opts)
	if !errors.Is(err, engine.ErrEngineNotFound) {
		t.Fatalf("error = %v, want ErrEngineNotFound", err)
	}
	var se *StageError
	if errors.As(err, &se) && se.IssueID() != issue.EngineNotFoundId {
		t.Errorf("IssueID() = %d, want %d", se.IssueID(), issue.EngineNotFoundId)
	}

	entries, rerr := os.ReadDir(opts.WorkspaceDir)
	if rerr != nil {
		t.Fatal(rerr)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not cleaned up: %v", entries)
	}
}

type failingSink struct{}

func (failingSink) Write(context.Context, []byte) error { return errors.New("disk full") }
func (failingSink) String() string                      { return "file:/full" }

func TestRunOutputFailure(t *testing.T) {
	t.Parallel()

	rec := enginetest.NewRecorder()
	outcome, err := Run(context.Background(), tarballSpec(t, "task", "x", ""), failingSink{}, testOptions(t, rec))
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageOutput {
		t.Fatalf("error = %v, want output stage error", err)
	}
	if se.IssueID() != issue.OutputSinkFailedId {
		t.Errorf("IssueID() = %d, want %d", se.IssueID(), issue.OutputSinkFailedId)
	}
	if outcome.Result == nil {
		t.Error("outcome should carry the engine result")
	}
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"nil", nil, types.ExitSuccess},
		{"plain error", errors.New("boom"), types.ExitFailure},
		{"config stage", &StageError{Stage: StageConfig, Err: errors.New("bad")}, types.ExitConfigError},
		{"invalid spec in later stage", &StageError{Stage: StageAssemble, Err: jobspec.ErrInvalidJobSpec}, types.ExitConfigError},
		{"provision stage", &StageError{Stage: StageProvision, Err: errors.New("clone")}, types.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCodeOf(tt.err); got != tt.want {
				t.Errorf("ExitCodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}
