// SPDX-License-Identifier: MPL-2.0

// Package enginetest fakes the automation engine binary with the
// TestHelperProcess pattern: a Recorder hands out exec.Cmd values that
// re-run the test binary, which then answers with a scripted Response.
//
// # Usage
//
// Every test package that uses a Recorder declares the helper entry point:
//
//	func TestHelperProcess(t *testing.T) { enginetest.HelperProcess() }
//
// and injects the recorder into the engine:
//
//	rec := enginetest.NewRecorder()
//	rec.On("module install", enginetest.Response{ExitCode: 1})
//	cli := engine.New("bolt", engine.WithExecCommand(rec.CommandFunc()))
package enginetest
