// SPDX-License-Identifier: MPL-2.0

// Package config handles boltstep settings using Viper with CUE as the file format.
//
// Settings come from built-in defaults, an optional config.cue in the
// boltstep config directory ($XDG_CONFIG_HOME/boltstep on Linux,
// ~/Library/Application Support/boltstep on macOS, %APPDATA%\boltstep on
// Windows), and BOLTSTEP_* environment variables, in increasing precedence.
// The file is validated against an embedded CUE schema (config_schema.cue).
package config
