// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test instead of
// returning errors.
//
// It covers environment variables (MustSetenv, MustUnsetenv, SetHomeDir),
// file fixtures (MustMkdirAll, MustWriteFile, MustReadFile) and project
// tarballs (ProjectArchive, MustWriteProjectArchive). The enginetest
// subpackage fakes the automation engine.
package testutil
