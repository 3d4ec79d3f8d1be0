// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"

	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/testutil/enginetest"
)

// fixtureRepo is a local repository with two commits on master, a
// lightweight tag and an annotated tag on the first commit, and a
// "feature" branch with its own commit.
type fixtureRepo struct {
	dir     string
	first   plumbing.Hash
	second  plumbing.Hash
	feature plumbing.Hash
}

func newFixtureRepo(t *testing.T) *fixtureRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	sig := &object.Signature{Name: "ops", Email: "ops@example.com", When: time.Unix(1700000000, 0)}
	commit := func(content, msg string) plumbing.Hash {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, "bolt-project.yaml"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add("bolt-project.yaml"); err != nil {
			t.Fatal(err)
		}
		hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig})
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		return hash
	}

	fx := &fixtureRepo{dir: dir}
	fx.first = commit("name: v1\n", "first")
	if _, err := repo.CreateTag("v1.0.0", fx.first, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateTag("release-1", fx.first, &git.CreateTagOptions{Tagger: sig, Message: "release"}); err != nil {
		t.Fatal(err)
	}
	fx.second = commit("name: v2\n", "second")

	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("feature"), Create: true, Hash: fx.first}); err != nil {
		t.Fatal(err)
	}
	fx.feature = commit("name: feature\n", "feature work")
	if err := wt.Checkout(&git.CheckoutOptions{Hash: fx.second, Force: true}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("master"))); err != nil {
		t.Fatal(err)
	}
	return fx
}

// copyClone stands in for a network clone by copying the fixture.
func (fx *fixtureRepo) copyClone(seen **git.CloneOptions) CloneFunc {
	return func(_ context.Context, dest string, opts *git.CloneOptions) (*git.Repository, error) {
		if seen != nil {
			*seen = opts
		}
		if err := os.CopyFS(dest, os.DirFS(fx.dir)); err != nil {
			return nil, err
		}
		return git.PlainOpen(dest)
	}
}

func readProjectName(t *testing.T, dir string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "bolt-project.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(strings.TrimPrefix(string(data), "name:"))
}

func TestGitFetcherVersions(t *testing.T) {
	t.Parallel()

	fx := newFixtureRepo(t)

	tests := []struct {
		name       string
		version    string
		wantCommit plumbing.Hash
		wantName   string
	}{
		{name: "default branch", version: "", wantCommit: fx.second, wantName: "v2"},
		{name: "lightweight tag", version: "v1.0.0", wantCommit: fx.first, wantName: "v1"},
		{name: "annotated tag", version: "release-1", wantCommit: fx.first, wantName: "v1"},
		{name: "branch", version: "feature", wantCommit: fx.feature, wantName: "feature"},
		{name: "commit sha", version: fx.first.String(), wantCommit: fx.first, wantName: "v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ws := newWorkspace(t)
			f := NewGitFetcher(ws, WithCloneFunc(fx.copyClone(nil)))
			project, err := f.Fetch(context.Background(), jobspec.ProjectSource{
				Kind:    jobspec.ProjectGit,
				Source:  fx.dir,
				Version: tt.version,
			}, ws.ProjectDir())
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if project.Commit != tt.wantCommit.String() {
				t.Errorf("Commit = %s, want %s", project.Commit, tt.wantCommit)
			}
			if got := readProjectName(t, project.Dir); got != tt.wantName {
				t.Errorf("checked out %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestGitFetcherUnresolvableVersion(t *testing.T) {
	t.Parallel()

	fx := newFixtureRepo(t)
	ws := newWorkspace(t)
	rec := enginetest.NewRecorder()
	p := New(ws, newEngine(rec),
		WithLogger(quietLogger()),
		WithFetcher(jobspec.ProjectGit, NewGitFetcher(ws, WithCloneFunc(fx.copyClone(nil)))),
	)

	_, err := p.Provision(context.Background(), jobspec.ProjectSource{
		Kind:    jobspec.ProjectGit,
		Source:  fx.dir,
		Version: "does-not-exist",
	})
	if !errors.Is(err, ErrRevisionNotFound) {
		t.Fatalf("Provision() error = %v, want ErrRevisionNotFound", err)
	}
	if !errors.Is(err, ErrFetchFailed) {
		t.Error("error does not wrap ErrFetchFailed")
	}
	rec.AssertInvocationCount(t, 0)
}

func TestGitFetcherCloneFailureRemovesDest(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	f := NewGitFetcher(ws, WithCloneFunc(func(_ context.Context, dest string, _ *git.CloneOptions) (*git.Repository, error) {
		_ = os.MkdirAll(filepath.Join(dest, ".git"), 0o755)
		return nil, errors.New("repository not found")
	}))

	_, err := f.Fetch(context.Background(), jobspec.ProjectSource{Kind: jobspec.ProjectGit, Source: "https://example.com/missing.git"}, ws.ProjectDir())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Op != "clone" {
		t.Fatalf("Fetch() error = %v, want clone FetchError", err)
	}
	if _, err := os.Stat(ws.ProjectDir()); !os.IsNotExist(err) {
		t.Error("partial clone was not removed")
	}
}

func generateKey(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := gossh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	return string(pem.EncodeToMemory(block))
}

func TestGitFetcherSSHKey(t *testing.T) {
	t.Parallel()

	fx := newFixtureRepo(t)
	ws := newWorkspace(t)

	var seen *git.CloneOptions
	f := NewGitFetcher(ws, WithCloneFunc(fx.copyClone(&seen)))

	_, err := f.Fetch(context.Background(), jobspec.ProjectSource{
		Kind:   jobspec.ProjectGit,
		Source: "deploy@git.example.com:ops/site.git",
		SSHKey: generateKey(t),
	}, ws.ProjectDir())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	auth, ok := seen.Auth.(*ssh.PublicKeys)
	if !ok {
		t.Fatalf("Auth = %T, want *ssh.PublicKeys", seen.Auth)
	}
	if auth.User != "deploy" {
		t.Errorf("auth user = %q, want deploy", auth.User)
	}
	if auth.HostKeyCallback == nil {
		t.Error("host key callback not set")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(ws.ProjectKeyPath())
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("key mode = %o, want 600", perm)
		}
	}

	cfg, err := os.ReadFile(ws.SSHConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"StrictHostKeyChecking no", "IdentityFile " + ws.ProjectKeyPath()} {
		if !strings.Contains(string(cfg), want) {
			t.Errorf("ssh_config missing %q:\n%s", want, cfg)
		}
	}
}

func TestGitFetcherRejectsBadKey(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	cloned := false
	f := NewGitFetcher(ws, WithCloneFunc(func(context.Context, string, *git.CloneOptions) (*git.Repository, error) {
		cloned = true
		return nil, errors.New("unreachable")
	}))

	_, err := f.Fetch(context.Background(), jobspec.ProjectSource{
		Kind:   jobspec.ProjectGit,
		Source: "git@git.example.com:ops/site.git",
		SSHKey: "not a key",
	}, ws.ProjectDir())
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Fetch() error = %v, want ErrFetchFailed", err)
	}
	if cloned {
		t.Error("clone attempted with an unusable key")
	}
}

func TestSSHConfig(t *testing.T) {
	t.Parallel()

	withoutKey := SSHConfig("")
	if strings.Contains(withoutKey, "IdentityFile") {
		t.Errorf("config without key names an identity:\n%s", withoutKey)
	}
	if !strings.Contains(withoutKey, "UserKnownHostsFile /dev/null") {
		t.Errorf("config does not discard known hosts:\n%s", withoutKey)
	}
	if withKey := SSHConfig("/ws/keys/project"); !strings.Contains(withKey, "IdentitiesOnly yes") {
		t.Errorf("config with key does not pin identities:\n%s", withKey)
	}
}
