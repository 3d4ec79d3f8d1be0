// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error context for boltstep.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for the operator. The issue catalog maps each failure class of
// a run (rejected job spec, provisioning failure, missing engine, ...) to a
// markdown help page rendered with glamour in verbose mode.
package issue
