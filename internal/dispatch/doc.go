// SPDX-License-Identifier: MPL-2.0

// Package dispatch turns the job spec's action into exactly one engine
// execution. Actions form a closed set (Task, Plan, Apply); an apply first
// synthesises a manifest that declares the requested class with the run's
// parameters.
package dispatch
