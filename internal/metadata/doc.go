// SPDX-License-Identifier: MPL-2.0

// Package metadata talks to the run's metadata API: it fetches the job spec
// (GET <base>/spec) and publishes the captured engine output
// (PUT <base>/outputs/<key>).
package metadata
