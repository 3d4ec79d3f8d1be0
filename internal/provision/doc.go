// SPDX-License-Identifier: MPL-2.0

// Package provision materialises the automation project a run executes.
//
// A project is either an archive (downloaded over HTTP or read from a local
// path, then extracted with compression auto-detected) or a git repository
// (cloned with go-git, optionally authenticated with an SSH key, and checked
// out at a pinned revision). Once the project directory exists the engine
// installs the project's declared modules.
//
//	p := provision.New(ws, cli, provision.WithLogger(logger))
//	project, err := p.Provision(ctx, plan.Project)
package provision
