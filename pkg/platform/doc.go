// SPDX-License-Identifier: MPL-2.0

// Package platform names the operating systems boltstep treats differently,
// for runtime.GOOS comparisons.
package platform
