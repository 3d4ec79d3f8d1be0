// SPDX-License-Identifier: MPL-2.0

// Package jobspec reads the job specification that drives a boltstep run.
//
// A job spec is loaded once from YAML, JSON or TOML, canonicalised to JSON and
// validated against an embedded JSON Schema. Fields are then read by dotted
// key path through Spec.Get, which never fails: a missing field yields an
// Absent Value, and callers substitute their documented default.
//
// Parse resolves the handful of required decisions (project kind, action kind
// and action name) up front so that an unusable spec is rejected before any
// provisioning side effect happens.
package jobspec
