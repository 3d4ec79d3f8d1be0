// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs one boltstep job end to end: validate the job spec,
// provision the project, resolve the inventory, assemble the engine
// configuration, dispatch the action and deliver its output.
//
// Stages run strictly in sequence. The first failure stops the run and is
// returned as a *StageError naming the stage. A non-zero engine exit is not
// a failure: the output is still delivered and the code is reported in the
// Outcome.
package pipeline
