// SPDX-License-Identifier: MPL-2.0

// Package engine wraps the Puppet Bolt command line. It builds the argument
// lists for the subcommands boltstep uses and runs them with an injectable
// exec function, keeping stdout as the run result and forwarding stderr.
package engine
