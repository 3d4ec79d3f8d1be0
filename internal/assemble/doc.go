// SPDX-License-Identifier: MPL-2.0

// Package assemble builds the files the engine reads for a run: the engine
// configuration, the parameters file and the targets file.
//
// The engine configuration is the deep merge of three layers, lowest
// precedence first: the SSH transport settings derived from the job spec,
// the job spec's own config overrides, and the safety settings every
// unattended run needs.
package assemble
