// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"

	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/workspace"
)

const defaultSSHUser = "git"

type (
	// CloneFunc clones a repository into dest. It matches git.PlainCloneContext
	// with isBare fixed to false.
	CloneFunc func(ctx context.Context, dest string, opts *git.CloneOptions) (*git.Repository, error)

	// GitFetcher clones a project repository and checks out a revision.
	GitFetcher struct {
		ws    *workspace.Workspace
		clone CloneFunc
	}

	// GitOption configures a GitFetcher.
	GitOption func(*GitFetcher)
)

// WithCloneFunc replaces the clone implementation, primarily for tests.
func WithCloneFunc(fn CloneFunc) GitOption {
	return func(f *GitFetcher) {
		f.clone = fn
	}
}

// NewGitFetcher creates a fetcher that keeps key material in ws.
func NewGitFetcher(ws *workspace.Workspace, opts ...GitOption) *GitFetcher {
	f := &GitFetcher{
		ws: ws,
		clone: func(ctx context.Context, dest string, opts *git.CloneOptions) (*git.Repository, error) {
			return git.PlainCloneContext(ctx, dest, false, opts)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch clones src.Source into dest and, when src.Version is set, checks out
// that revision. Host keys are trusted on first use.
func (f *GitFetcher) Fetch(ctx context.Context, src jobspec.ProjectSource, dest string) (*Project, error) {
	source := RedactSource(src.Source)

	auth, err := f.setupAuth(src)
	if err != nil {
		return nil, &FetchError{Op: "configure ssh for", Source: source, Err: err}
	}

	repo, err := f.clone(ctx, dest, &git.CloneOptions{
		URL:  src.Source,
		Auth: auth,
	})
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, &FetchError{Op: "clone", Source: source, Err: err}
	}

	head, err := repo.Head()
	if err != nil {
		return nil, &FetchError{Op: "read HEAD of", Source: source, Err: err}
	}
	project := &Project{Dir: dest, Kind: jobspec.ProjectGit, Commit: head.Hash().String()}

	if src.Version == "" {
		return project, nil
	}

	hash, err := resolveRevision(repo, src.Version)
	if err != nil {
		return nil, &FetchError{Op: "resolve version " + src.Version + " in", Source: source, Err: err}
	}
	if err := checkout(repo, hash); err != nil {
		return nil, &FetchError{Op: "check out " + src.Version + " in", Source: source, Err: err}
	}
	project.Commit = hash.String()
	return project, nil
}

// setupAuth writes the SSH configuration (and key, if any) into the workspace
// and returns the go-git auth method for SSH endpoints. Non-SSH endpoints get
// nil auth.
func (f *GitFetcher) setupAuth(src jobspec.ProjectSource) (transport.AuthMethod, error) {
	keyPath := ""
	if src.SSHKey != "" {
		keyPath = f.ws.ProjectKeyPath()
		if err := f.ws.WriteSecret(keyPath, src.SSHKey); err != nil {
			return nil, err
		}
	}
	if err := f.ws.WriteFile(f.ws.SSHConfigPath(), []byte(SSHConfig(keyPath))); err != nil {
		return nil, err
	}

	ep, err := transport.NewEndpoint(src.Source)
	if err != nil || ep.Protocol != "ssh" {
		return nil, nil //nolint:nilerr // unparseable sources fail in clone with a better message
	}

	user := ep.User
	if user == "" {
		user = defaultSSHUser
	}

	if keyPath != "" {
		auth, err := ssh.NewPublicKeysFromFile(user, keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("load project ssh key: %w", err)
		}
		auth.HostKeyCallback = gossh.InsecureIgnoreHostKey()
		return auth, nil
	}

	// No key: fall back to the SSH agent when one is running.
	agentAuth, err := ssh.NewSSHAgentAuth(user)
	if err != nil {
		return nil, nil //nolint:nilerr // public repositories need no auth
	}
	agentAuth.HostKeyCallback = gossh.InsecureIgnoreHostKey()
	return agentAuth, nil
}

// SSHConfig renders an OpenSSH client configuration that disables strict
// host-key checking and, when keyPath is set, pins the identity file.
func SSHConfig(keyPath string) string {
	var b strings.Builder
	b.WriteString("Host *\n")
	b.WriteString("  StrictHostKeyChecking no\n")
	b.WriteString("  UserKnownHostsFile /dev/null\n")
	b.WriteString("  LogLevel ERROR\n")
	if keyPath != "" {
		fmt.Fprintf(&b, "  IdentityFile %s\n", keyPath)
		b.WriteString("  IdentitiesOnly yes\n")
	}
	return b.String()
}

// resolveRevision resolves version as a tag, a remote branch, a local branch
// or a commit hash, in that order.
func resolveRevision(repo *git.Repository, version string) (plumbing.Hash, error) {
	if ref, err := repo.Reference(plumbing.NewTagReferenceName(version), true); err == nil {
		// Annotated tags point at a tag object; dereference to the commit.
		if tagObj, err := repo.TagObject(ref.Hash()); err == nil {
			return tagObj.Target, nil
		}
		return ref.Hash(), nil
	}

	for _, name := range []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName("origin", version),
		plumbing.NewBranchReferenceName(version),
	} {
		if ref, err := repo.Reference(name, true); err == nil {
			return ref.Hash(), nil
		}
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(version))
	if err == nil {
		if _, err := repo.CommitObject(*hash); err == nil {
			return *hash, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrRevisionNotFound, version)
}

func checkout(repo *git.Repository, hash plumbing.Hash) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	return worktree.Checkout(&git.CheckoutOptions{
		Hash:  hash,
		Force: true,
	})
}
